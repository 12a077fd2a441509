package utils

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/lib/pq"
)

func BuildPostgresDSN(cfg DatabaseConfig) string {
	dsn := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	if cfg.Password != "" {
		dsn.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		dsn.User = url.User(cfg.User)
	}
	return dsn.String()
}

func OpenPostgres(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSN(cfg))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}
