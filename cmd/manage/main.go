// Command manage runs administrative tasks against the canteen database.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/cantine/backend/config"
	"github.com/pageza/cantine/backend/internal/database"
	"github.com/pageza/cantine/backend/internal/logging"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
)

// app holds what every subcommand shares. The database is opened in the
// root's PersistentPreRunE so --help works offline.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func main() {
	a := &app{}
	if err := a.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "manage",
		Short:         "Canteen administration commands",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.AddCommand(a.createUserCmd(), a.importStudentsCmd(), a.migrateCmd())
	return root
}

func (a *app) open() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg
	a.log = logging.Must(config.IsProduction(), cfg.LogLevel)

	db, err := database.New(cfg, a.log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = database.Close(a.db)
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) clock() time.Time {
	return time.Now().In(a.cfg.Location())
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return database.RunMigrations(a.db, a.log)
		},
	}
}

func (a *app) createUserCmd() *cobra.Command {
	var in service.NewAccount
	var role string
	cmd := &cobra.Command{
		Use:   "create-user <username>",
		Short: "Create an account; --staff makes it an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Username = args[0]
			in.Role = models.Role(role)
			if in.Password == "" {
				pw, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				in.Password = pw
			}

			accounts := service.NewAccountService(a.db, a.cfg.JWTSecret, service.WithAccountClock(a.clock))
			user, err := accounts.CreateAccount(cmd.Context(), in)
			if errs := service.FieldErrors(err); errs != nil {
				return fieldErrorsToError(errs)
			}
			if err != nil {
				return err
			}
			a.log.Info("account created",
				zap.String("username", user.Username),
				zap.String("role", string(user.Profile.Role)))
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s).\n", user.Username, user.Profile.Role.Label())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "e-mail address")
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVar(&in.Password, "password", "", "password, prompted for when empty")
	f.BoolVar(&in.IsStaff, "staff", false, "grant administrator rights")
	f.StringVar(&role, "role", "", "explicit role (admin or provider)")
	f.StringVar(&in.Contact, "contact", "", "phone or other contact")
	f.StringVar(&in.Position, "position", "", "job title")
	return cmd
}

func (a *app) importStudentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-students <file.csv>",
		Short: "Create or update students from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			students := service.NewStudentService(a.db, nil, a.clock)
			result, err := students.Import(cmd.Context(), f)
			if errs := service.FieldErrors(err); errs != nil {
				return fieldErrorsToError(errs)
			}
			if err != nil {
				return err
			}
			a.log.Info("students imported",
				zap.Int("created", result.Created),
				zap.Int("updated", result.Updated),
				zap.Int("skipped", result.Skipped))
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		},
	}
}

func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("a password is required")
	}
	return pw, nil
}

func fieldErrorsToError(errs map[string]string) error {
	parts := make([]string, 0, len(errs))
	for field, msg := range errs {
		parts = append(parts, field+": "+msg)
	}
	return errors.New(strings.Join(parts, "; "))
}
