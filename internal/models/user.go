package models

import (
	"gorm.io/gorm"
)

type UserType string

const (
	UserTypeClient UserType = "client"
	UserTypeDriver UserType = "driver"
)

// Gender constants used by ride-type eligibility checks
const (
	GenderFemale = "female"
	GenderMale   = "male"
)

type User struct {
	gorm.Model
	Username    string `json:"username" gorm:"column:username;unique;not null"`
	PhoneNumber string `json:"phoneNumber" gorm:"column:phone_number"`
	UserType    string `json:"userType" gorm:"column:user_type;not null"`
	Gender      string `json:"gender" gorm:"column:gender"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}
