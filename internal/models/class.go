package models

// Class is a pedagogical group. A class cannot be deleted while students reference it.
type Class struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Name       string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Level      string    `gorm:"size:50" json:"level"`
	Supervisor string    `gorm:"size:100" json:"supervisor"`
	Students   []Student `gorm:"foreignKey:ClassID;constraint:OnDelete:RESTRICT" json:"-"`
}
