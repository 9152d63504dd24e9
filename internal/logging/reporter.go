package logging

import (
	"net/http"

	"github.com/rollbar/rollbar-go"
)

// Reporter forwards unexpected errors to Rollbar. A reporter built without
// a token only drops them.
type Reporter struct {
	enabled bool
}

func NewReporter(token, environment, host string) *Reporter {
	if token == "" {
		return &Reporter{}
	}
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	rollbar.SetServerHost(host)
	rollbar.SetEnabled(true)
	return &Reporter{enabled: true}
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// RequestError reports err raised while serving req.
func (r *Reporter) RequestError(req *http.Request, err error) {
	if !r.Enabled() {
		return
	}
	rollbar.RequestError(rollbar.ERR, req, err)
}

// Critical reports a recovered panic.
func (r *Reporter) Critical(req *http.Request, err error) {
	if !r.Enabled() {
		return
	}
	rollbar.RequestError(rollbar.CRIT, req, err)
}

// Close flushes pending reports.
func (r *Reporter) Close() {
	if r.Enabled() {
		rollbar.Close()
	}
}
