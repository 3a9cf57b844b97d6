package models

import (
	"time"
)

// Person roles as stored in smbt_persons.role_id
const (
	RoleCustomer     uint = 1
	RoleExterminator uint = 2
	RoleAdmin        uint = 3
)

// Person is a participant of the workflow: a customer, an inspector
// ("exterminator" in the stored schema) or an administrator.
type Person struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	FIO               string     `gorm:"column:fio;not null" json:"fio"`
	Phone             string     `json:"phone"`
	RoleID            uint       `gorm:"default:2" json:"role_id"`
	CertificateNumber string     `gorm:"column:sertificate_number" json:"sertificate_number,omitempty"`
	CertificateIssued *time.Time `gorm:"column:date_of_sert_issue" json:"date_of_sert_issue,omitempty"`
	ContractNumber    string     `json:"contract_number,omitempty"`
	ContractIssued    *time.Time `gorm:"column:date_of_cont_issue" json:"date_of_cont_issue,omitempty"`
	WardNumber        string     `json:"ward_number,omitempty"`
	WardIssued        *time.Time `gorm:"column:date_of_ward_issue" json:"date_of_ward_issue,omitempty"`
	WorkExperience    int        `json:"work_experience"`
	CreatedAt         time.Time  `json:"created_at"`

	// Blob keys of the credential scans uploaded at registration
	CertificateFile string `gorm:"column:sertificate_file" json:"sertificate_file,omitempty"`
	ContractFile    string `gorm:"column:insurance_contract_file" json:"insurance_contract_file,omitempty"`
	WardFile        string `json:"ward_file,omitempty"`
}

// TableName specifies the table name for Person model
func (Person) TableName() string {
	return "smbt_persons"
}

// User holds login credentials for a Person
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Email          string     `gorm:"unique;not null" json:"email"`
	HashedPassword string     `gorm:"not null" json:"-"`
	PersonID       uint       `gorm:"not null;index" json:"person_id"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`

	// Relations
	Person *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "smbt_users"
}
