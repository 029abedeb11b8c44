package config

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/pem"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

type Config struct {
	OrganizationName string
	AppName          string
	AppPort          string
	AppUrl           string

	// Database
	DBUrl string

	// Ledger settlement node
	LedgerBaseURL string
	LedgerAPIKey  string
	LedgerTimeout time.Duration

	// Twilio / SendGrid for marketplace notifications
	TwilioAccountSID string
	TwilioAuthToken  string
	SendGridAPIKey   string
	OpsTeamEmail     string
	OpsTeamPhone     string

	// Auth
	RSAPublicKey *rsa.PublicKey

	// Users with administrative authority (status override, dispute
	// resolution).
	AdminUserIDs []uuid.UUID

	// Sweeper cadence
	SweepInterval      time.Duration
	VerificationMaxAge time.Duration

	// LaunchDarkly flags
	LDFlag_LedgerDryRun        bool
	LDFlag_TwilioFromPhone     string
	LDFlag_SendgridFromEmail   string
	LDFlag_SendgridSandboxMode bool
	LDFlag_SeedDbWithTestData  bool
	LDFlag_CORSHighSecurity    bool
}

const (
	OrganizationName    = "Brickchain"
	LDConnectionTimeout = 5 * time.Second
)

// build-time overrides
var (
	AppName             string
	LDServerContextKey  string
	LDServerContextKind string
)

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		utils.Logger.Fatalf("%s env var is missing", key)
	}
	return val
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		utils.Logger.WithError(err).Fatalf("%s is not a valid duration", key)
	}
	return d
}

func LoadConfig() *Config {
	if AppName == "" {
		AppName = "estate-service"
	}

	utils.Logger.Info("Loading config for app: ", AppName)

	// .env is optional; real deployments inject the environment directly.
	if err := godotenv.Load(); err != nil {
		utils.Logger.Debug("No .env file found, relying on process environment")
	}

	appUrl := mustGetEnv("APP_URL_FROM_ANYWHERE")
	appPort := mustGetEnv("APP_PORT")
	dbURL := mustGetEnv("DB_URL")

	// Tokens are minted by the identity service; this service only verifies.
	pubPEM, err := base64.StdEncoding.DecodeString(mustGetEnv("RSA_PUBLIC_KEY_BASE64"))
	if err != nil {
		utils.Logger.WithError(err).Fatal("RSA_PUBLIC_KEY_BASE64 is not valid base64")
	}
	if block, _ := pem.Decode(pubPEM); block == nil {
		utils.Logger.Fatal("Failed to decode PEM block for public key")
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA public key")
	}

	twilioSID := mustGetEnv("TWILIO_ACCOUNT_SID")
	twilioToken := mustGetEnv("TWILIO_AUTH_TOKEN")
	sgAPIKey := mustGetEnv("SENDGRID_API_KEY")
	opsEmail := os.Getenv("OPS_TEAM_EMAIL")
	if opsEmail == "" {
		utils.Logger.Warn("OPS_TEAM_EMAIL not set, ops email notifications disabled")
	}
	opsPhone := os.Getenv("OPS_TEAM_PHONE")

	ledgerBaseURL := mustGetEnv("LEDGER_BASE_URL")
	ledgerAPIKey := mustGetEnv("LEDGER_API_KEY")
	ledgerTimeout := getEnvDuration("LEDGER_TIMEOUT", 10*time.Second)

	var adminIDs []uuid.UUID
	for _, raw := range strings.Split(os.Getenv("ADMIN_USER_IDS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.Logger.Fatalf("ADMIN_USER_IDS contains invalid UUID %q", raw)
		}
		adminIDs = append(adminIDs, id)
	}

	sweepInterval := getEnvDuration("SWEEP_INTERVAL", 60*time.Second)
	verificationMaxAge := getEnvDuration("VERIFICATION_MAX_AGE", 72*time.Hour)

	ldSDKKey := mustGetEnv("LD_SDK_KEY")
	ldClient, err := ld.MakeClient(ldSDKKey, LDConnectionTimeout)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create LaunchDarkly client")
	}
	if !ldClient.Initialized() {
		ldClient.Close()
		utils.Logger.Fatal("LaunchDarkly client failed to initialize")
	}
	defer ldClient.Close()

	ctxKind := LDServerContextKind
	if ctxKind == "" {
		ctxKind = "service"
	}
	ctxKey := LDServerContextKey
	if ctxKey == "" {
		ctxKey = AppName
	}
	ctx := ldcontext.NewWithKind(ldcontext.Kind(ctxKind), ctxKey)

	ledgerDryRunFlag, err := ldClient.BoolVariation("ledger_dry_run", ctx, false)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving ledger_dry_run flag")
	}
	utils.Logger.Debugf("ledger_dry_run flag: %t", ledgerDryRunFlag)

	twilioFromFlag, err := ldClient.StringVariation("twilio_from_phone", ctx, "")
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving twilio_from_phone flag")
	}
	if twilioFromFlag == "" {
		utils.Logger.Warn("twilio_from_phone flag is empty, defaulting to +10005550006")
		twilioFromFlag = "+10005550006"
	}

	sgFromFlag, err := ldClient.StringVariation("sendgrid_from_email", ctx, "")
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving sendgrid_from_email flag")
	}
	if sgFromFlag == "" {
		utils.Logger.Warn("sendgrid_from_email flag is empty, defaulting to no-reply@brickchain.io")
		sgFromFlag = "no-reply@brickchain.io"
	}

	sgSandboxFlag, err := ldClient.BoolVariation("sendgrid_sandbox_mode", ctx, false)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving sendgrid_sandbox_mode flag")
	}

	seedDbWithTestDataFlag, err := ldClient.BoolVariation("seed_db_with_test_data", ctx, false)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving seed_db_with_test_data flag")
	}

	corsHighSecurityFlag, err := ldClient.BoolVariation("cors_high_security", ctx, false)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving cors_high_security flag")
	}

	return &Config{
		OrganizationName: OrganizationName,
		AppName:          AppName,
		AppPort:          appPort,
		AppUrl:           appUrl,

		DBUrl: dbURL,

		LedgerBaseURL: ledgerBaseURL,
		LedgerAPIKey:  ledgerAPIKey,
		LedgerTimeout: ledgerTimeout,

		TwilioAccountSID: twilioSID,
		TwilioAuthToken:  twilioToken,
		SendGridAPIKey:   sgAPIKey,
		OpsTeamEmail:     opsEmail,
		OpsTeamPhone:     opsPhone,

		RSAPublicKey: pubKey,

		AdminUserIDs: adminIDs,

		SweepInterval:      sweepInterval,
		VerificationMaxAge: verificationMaxAge,

		LDFlag_LedgerDryRun:        ledgerDryRunFlag,
		LDFlag_TwilioFromPhone:     twilioFromFlag,
		LDFlag_SendgridFromEmail:   sgFromFlag,
		LDFlag_SendgridSandboxMode: sgSandboxFlag,
		LDFlag_SeedDbWithTestData:  seedDbWithTestDataFlag,
		LDFlag_CORSHighSecurity:    corsHighSecurityFlag,
	}
}

// IsAdmin reports whether the given user holds administrative authority.
func (c *Config) IsAdmin(userID uuid.UUID) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
