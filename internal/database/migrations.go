package database

import (
	"github.com/chachabrian/swiftride-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.DriverProfile{},
		&models.Vehicle{},
		&models.RideType{},
		&models.DriverRideType{},
		&models.Ride{},
		&models.RideStatusHistory{},
		&models.Payment{},
	)
	if err != nil {
		return err
	}

	// Update users table
	if db.Migrator().HasTable(&models.User{}) {
		columns := []string{
			"ADD COLUMN IF NOT EXISTS gender text DEFAULT ''",
			"ADD COLUMN IF NOT EXISTS user_type text DEFAULT 'client'",
		}

		for _, column := range columns {
			if err := db.Exec("ALTER TABLE users " + column).Error; err != nil {
				return err
			}
		}

		// Update constraint
		db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_user_type_check`)
		db.Exec(`ALTER TABLE users ADD CONSTRAINT users_user_type_check CHECK (user_type IN ('client', 'driver'))`)
	}

	// Status checks keep bad writes out even when a code path skips the
	// state machine.
	db.Exec(`ALTER TABLE rides DROP CONSTRAINT IF EXISTS rides_status_check`)
	db.Exec(`ALTER TABLE rides ADD CONSTRAINT rides_status_check CHECK (status IN ('REQUESTED', 'ACCEPTED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED', 'REJECTED'))`)

	// Seed default ride types on first boot
	var count int64
	db.Model(&models.RideType{}).Count(&count)
	if count == 0 {
		defaults := []models.RideType{
			{Name: "Standard", BaseFare: 100, RatePerKm: 45, RatePerMin: 5, MinimumFare: 150},
			{Name: "XL", AllowedVehicleTypes: "suv,van", BaseFare: 150, RatePerKm: 60, RatePerMin: 7, MinimumFare: 220},
			{Name: "Boda", AllowedVehicleTypes: "motorcycle", RequiresMotorcycle: true, BaseFare: 50, RatePerKm: 25, RatePerMin: 3, MinimumFare: 70},
			{Name: "SafeHer", FemaleDriverOnly: true, BaseFare: 110, RatePerKm: 50, RatePerMin: 5, MinimumFare: 160},
			{Name: "Armored", AllowedVehicleTypes: "armored", RequiresArmored: true, BaseFare: 500, RatePerKm: 120, RatePerMin: 15, MinimumFare: 800},
		}
		for i := range defaults {
			defaults[i].Active = true
			if err := db.Create(&defaults[i]).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
