package utils

import (
	"fmt"
	"strings"
	"time"
)

// PostgresParams параметры подключения к базе каталога
type PostgresParams struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	PoolSize int           // 0 - размер пула pgxpool по умолчанию
	Timeout  time.Duration // 0 - без connect_timeout
}

var sslModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

func (p PostgresParams) validate() error {
	switch {
	case p.Host == "":
		return ErrDSNHost
	case p.Port <= 0 || p.Port > 65535:
		return ErrDSNPort
	case p.User == "":
		return ErrDSNUser
	case p.Password == "":
		return ErrDSNPassword
	case p.DBName == "":
		return ErrDSNDatabase
	case !sslModes[p.SSLMode]:
		return ErrDSNSSLMode
	case p.PoolSize < 0:
		return ErrDSNPoolSize
	case p.Timeout < 0:
		return ErrDSNTimeout
	}
	return nil
}

// PostgresDSN собирает строку подключения в формате key=value для pgxpool.ParseConfig
func PostgresDSN(p PostgresParams) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	pairs := []string{
		"host=" + dsnValue(p.Host),
		fmt.Sprintf("port=%d", p.Port),
		"user=" + dsnValue(p.User),
		"password=" + dsnValue(p.Password),
		"dbname=" + dsnValue(p.DBName),
		"sslmode=" + p.SSLMode,
	}
	if p.PoolSize > 0 {
		pairs = append(pairs, fmt.Sprintf("pool_max_conns=%d", p.PoolSize))
	}
	if p.Timeout > 0 {
		pairs = append(pairs, fmt.Sprintf("connect_timeout=%d", int(p.Timeout.Seconds())))
	}
	return strings.Join(pairs, " "), nil
}

// dsnValue экранирует значение по правилам libpq: пустое или с пробелами берется в кавычки
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
