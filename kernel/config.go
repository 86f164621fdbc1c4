package kernel

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/dev-m-josh/final-project-sub001/mpesa"
)

var (
	once       sync.Once
	appRuntime *AppRuntime
)

type AppRuntime struct {
	Host string

	ServiceName           string
	ServiceVersion        string
	DeploymentEnvironment string

	DatabaseDSN    string
	DatabaseClient *gorm.DB

	JaegerEndpoint string
	Insecure       bool

	MpesaEnv string

	// Shared gateway client; owns the process-wide token cache.
	Mpesa *mpesa.Client

	// Payment record store the reconciler writes through. Backed by the
	// relational store once PrepareDatabase has run.
	Payments mpesa.PaymentStore

	Diagnostic *AppDiagnostic

	Context context.Context
}

// Credentials the settlement flow cannot run without. Missing values abort
// startup instead of silently producing unsigned gateway requests.
var requiredKeys = []string{
	"MPESA_ENV",
	"MPESA_SHORTCODE",
	"MPESA_PASSKEY",
	"MPESA_CONSUMER_KEY",
	"MPESA_CONSUMER_SECRET",
	"MPESA_CALLBACK_URL",
}

func LoadConfig() *AppRuntime {
	once.Do(func() {
		appEnv := os.Getenv("API_ENV")
		if appEnv == "" {
			appEnv = "development"
		}

		var env map[string]string
		env, err := godotenv.Read(".env." + appEnv)
		if err != nil {
			log.Fatal(err)
		}

		for _, key := range requiredKeys {
			if env[key] == "" {
				log.Fatalf("missing required config key %s", key)
			}
		}

		mpesaHost := "https://sandbox.safaricom.co.ke"
		if env["MPESA_ENV"] == "production" {
			mpesaHost = "https://api.safaricom.co.ke"
		}

		appRuntime = &AppRuntime{
			Host:        env["HOST"],
			DatabaseDSN: env["DATABASE_DSN"],

			ServiceName:           env["SERVICE_NAME"],
			ServiceVersion:        env["SERVICE_VERSION"],
			DeploymentEnvironment: env["DEPLOY_ENV"],

			JaegerEndpoint: env["JAEGER_ENDPOINT"],
			Insecure:       env["INSECURE"] == "true",

			MpesaEnv: env["MPESA_ENV"],
			Mpesa: mpesa.NewClient(mpesa.Config{
				BaseURL:        mpesaHost,
				Shortcode:      env["MPESA_SHORTCODE"],
				Passkey:        env["MPESA_PASSKEY"],
				ConsumerKey:    env["MPESA_CONSUMER_KEY"],
				ConsumerSecret: env["MPESA_CONSUMER_SECRET"],
				CallbackURL:    env["MPESA_CALLBACK_URL"],
			}),

			Diagnostic: &AppDiagnostic{
				Tracer: otel.Tracer(env["SERVICE_NAME"] + "-tracer"),
				Meter:  otel.Meter(env["SERVICE_NAME"] + "-meter"),
			},
		}
	})
	return appRuntime
}
