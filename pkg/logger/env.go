package logger

import (
	"os"
	"strings"
)

// Env определяет дефолтный backend: std в dev, zap (JSON) на stage/prod.
type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

var envAliases = map[string]Env{
	"prod":           EnvProd,
	"production":     EnvProd,
	"stage":          EnvStage,
	"staging":        EnvStage,
	"preprod":        EnvStage,
	"pre-production": EnvStage,
}

// DetectEnv читает APP_ENV.
func DetectEnv() Env { return ParseEnv(os.Getenv("APP_ENV")) }

// ParseEnv: неизвестное или пустое значение считается dev.
func ParseEnv(raw string) Env {
	if env, ok := envAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return env
	}
	return EnvDev
}
