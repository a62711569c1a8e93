package config

import (
	"fmt"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// InitDB opens the database connection from environment variables.
// DB_DRIVER selects mysql (production) or sqlite (local/dev); sqlite is the
// fallback so the server runs without any configuration.
func InitDB() (*gorm.DB, error) {
	driver := os.Getenv("DB_DRIVER")

	switch driver {
	case "mysql":
		user := os.Getenv("DB_USER")
		pass := os.Getenv("DB_PASSWORD")
		host := os.Getenv("DB_HOST")
		port := os.Getenv("DB_PORT")
		name := os.Getenv("DB_NAME")

		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "3306"
		}
		if name == "" {
			name = "reservation_app"
		}

		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			user, pass, host, port, name)
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})

	default:
		path := os.Getenv("DB_PATH")
		if path == "" {
			path = "reservation_app.db"
		}
		return gorm.Open(sqlite.Open(path), &gorm.Config{})
	}
}
