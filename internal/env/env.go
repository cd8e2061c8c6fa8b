package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/deepref-sh/deepref/internal/envparse"
	"github.com/deepref-sh/deepref/internal/envutil"
	"github.com/joho/godotenv"
)

type RegistrationMode string

const (
	RegistrationEnabled  RegistrationMode = "enabled"
	RegistrationDisabled RegistrationMode = "disabled"
)

func parseRegistrationMode(value string) (RegistrationMode, error) {
	switch value {
	case string(RegistrationEnabled):
		return RegistrationEnabled, nil
	case string(RegistrationDisabled):
		return RegistrationDisabled, nil
	default:
		return "", fmt.Errorf("invalid registration mode: %v", value)
	}
}

type MailerType string

const (
	MailerTypeUnspecified MailerType = ""
	MailerTypeSMTP        MailerType = "smtp"
)

func parseMailerType(value string) (MailerType, error) {
	switch value {
	case string(MailerTypeUnspecified):
		return MailerTypeUnspecified, nil
	case string(MailerTypeSMTP):
		return MailerTypeSMTP, nil
	default:
		return "", fmt.Errorf("invalid mailer type: %v", value)
	}
}

type MailerSMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	ImplicitTLS bool
}

type MailerConfig struct {
	Type        MailerType
	FromAddress string
	SmtpConfig  *MailerSMTPConfig
}

var (
	databaseUrl                  string
	databaseMaxConns             *int
	jwtSecret                    []byte
	host                         string
	listenAddr                   string
	accessTokenValidDuration     time.Duration
	refreshTokenValidDuration    time.Duration
	resetTokenValidDuration      time.Duration
	loginLinkValidDuration       time.Duration
	mfaChallengeValidDuration    time.Duration
	trustedDeviceValidDuration   time.Duration
	bcryptCost                   int
	loginLockoutThreshold        int
	loginLockoutDuration         time.Duration
	mfaAttemptLimit              int
	mfaAttemptWindow             time.Duration
	sessionRetention             time.Duration
	registration                 RegistrationMode
	userEmailVerificationRequired bool
	mailerConfig                 MailerConfig
	sentryDSN                    string
	sentryDebug                  bool
	sentryEnvironment            string
	serverShutdownDelayDuration  *time.Duration
	cleanupSessionCron           *string
	cleanupSessionTimeout        time.Duration
	cleanupMFAChallengeCron      *string
	cleanupMFAChallengeTimeout   time.Duration
	cleanupTrustedDeviceCron     *string
	cleanupTrustedDeviceTimeout  time.Duration
	cleanupLoginLinkCron         *string
	cleanupLoginLinkTimeout      time.Duration
)

func Initialize() {
	if currentEnv, ok := os.LookupEnv("DEEPREF_ENV"); ok {
		fmt.Fprintf(os.Stderr, "environment=%v\n", currentEnv)
		if err := godotenv.Load(currentEnv); err != nil {
			fmt.Fprintf(os.Stderr, "environment %v not loaded: %v\n", currentEnv, err)
		}
		secretEnv := currentEnv + ".secret"
		if err := godotenv.Load(secretEnv); err != nil {
			fmt.Fprintf(os.Stderr, "environment %v not loaded: %v\n", secretEnv, err)
		}
	}

	databaseUrl = envutil.RequireEnv("DATABASE_URL")
	databaseMaxConns = envutil.GetEnvParsedOrNil("DATABASE_MAX_CONNS", strconv.Atoi)
	jwtSecret = envutil.RequireEnvParsed("JWT_SECRET", envparse.ByteSlice)
	host = envutil.RequireEnv("DEEPREF_HOST")
	if addr := envutil.GetEnvOrNil("LISTEN_ADDR"); addr != nil {
		listenAddr = *addr
	} else {
		listenAddr = ":8080"
	}

	accessTokenValidDuration = envutil.GetEnvParsedOrDefault(
		"ACCESS_TOKEN_VALID_DURATION", envparse.PositiveDuration, 15*time.Minute,
	)
	refreshTokenValidDuration = envutil.GetEnvParsedOrDefault(
		"REFRESH_TOKEN_VALID_DURATION", envparse.PositiveDuration, 7*24*time.Hour,
	)
	resetTokenValidDuration = envutil.GetEnvParsedOrDefault(
		"RESET_TOKEN_VALID_DURATION", envparse.PositiveDuration, 1*time.Hour,
	)
	loginLinkValidDuration = envutil.GetEnvParsedOrDefault(
		"LOGIN_LINK_VALID_DURATION", envparse.PositiveDuration, 15*time.Minute,
	)
	mfaChallengeValidDuration = envutil.GetEnvParsedOrDefault(
		"MFA_CHALLENGE_VALID_DURATION", envparse.PositiveDuration, 5*time.Minute,
	)
	trustedDeviceValidDuration = envutil.GetEnvParsedOrDefault(
		"TRUSTED_DEVICE_VALID_DURATION", envparse.PositiveDuration, 30*24*time.Hour,
	)

	bcryptCost = envutil.GetEnvParsedOrDefault("BCRYPT_COST", envparse.NonNegativeNumber, 12)
	loginLockoutThreshold = envutil.GetEnvParsedOrDefault(
		"LOGIN_LOCKOUT_THRESHOLD", envparse.NonNegativeNumber, 5,
	)
	loginLockoutDuration = envutil.GetEnvParsedOrDefault(
		"LOGIN_LOCKOUT_DURATION", envparse.PositiveDuration, 15*time.Minute,
	)
	mfaAttemptLimit = envutil.GetEnvParsedOrDefault("MFA_ATTEMPT_LIMIT", envparse.NonNegativeNumber, 5)
	mfaAttemptWindow = envutil.GetEnvParsedOrDefault(
		"MFA_ATTEMPT_WINDOW", envparse.PositiveDuration, 15*time.Minute,
	)
	sessionRetention = envutil.GetEnvParsedOrDefault(
		"SESSION_RETENTION", envparse.PositiveDuration, 30*24*time.Hour,
	)

	registration = envutil.GetEnvParsedOrDefault("REGISTRATION", parseRegistrationMode, RegistrationEnabled)
	userEmailVerificationRequired = envutil.GetEnvParsedOrDefault(
		"USER_EMAIL_VERIFICATION_REQUIRED", strconv.ParseBool, true,
	)

	mailerConfig.Type = envutil.GetEnvParsedOrDefault("MAILER_TYPE", parseMailerType, MailerTypeUnspecified)
	if mailerConfig.Type != MailerTypeUnspecified {
		mailerConfig.FromAddress = envutil.RequireEnvParsed("MAILER_FROM_ADDRESS", envparse.MailAddress)
	}
	if mailerConfig.Type == MailerTypeSMTP {
		mailerConfig.SmtpConfig = &MailerSMTPConfig{
			Host:        envutil.GetEnv("MAILER_SMTP_HOST"),
			Port:        envutil.RequireEnvParsed("MAILER_SMTP_PORT", strconv.Atoi),
			Username:    envutil.GetEnv("MAILER_SMTP_USERNAME"),
			Password:    envutil.GetEnv("MAILER_SMTP_PASSWORD"),
			ImplicitTLS: envutil.GetEnvParsedOrDefault("MAILER_SMTP_IMPLICIT_TLS", strconv.ParseBool, false),
		}
	}

	sentryDSN = envutil.GetEnv("SENTRY_DSN")
	sentryDebug = envutil.GetEnvParsedOrDefault("SENTRY_DEBUG", strconv.ParseBool, false)
	sentryEnvironment = envutil.GetEnv("SENTRY_ENVIRONMENT")
	serverShutdownDelayDuration = envutil.GetEnvParsedOrNil("SERVER_SHUTDOWN_DELAY_DURATION", envparse.PositiveDuration)

	cleanupSessionCron = envutil.GetEnvOrNil("CLEANUP_SESSION_CRON")
	cleanupSessionTimeout = envutil.GetEnvParsedOrDefault("CLEANUP_SESSION_TIMEOUT",
		envparse.PositiveDuration, 0)
	cleanupMFAChallengeCron = envutil.GetEnvOrNil("CLEANUP_MFA_CHALLENGE_CRON")
	cleanupMFAChallengeTimeout = envutil.GetEnvParsedOrDefault("CLEANUP_MFA_CHALLENGE_TIMEOUT",
		envparse.PositiveDuration, 0)
	cleanupTrustedDeviceCron = envutil.GetEnvOrNil("CLEANUP_TRUSTED_DEVICE_CRON")
	cleanupTrustedDeviceTimeout = envutil.GetEnvParsedOrDefault("CLEANUP_TRUSTED_DEVICE_TIMEOUT",
		envparse.PositiveDuration, 0)
	cleanupLoginLinkCron = envutil.GetEnvOrNil("CLEANUP_LOGIN_LINK_CRON")
	cleanupLoginLinkTimeout = envutil.GetEnvParsedOrDefault("CLEANUP_LOGIN_LINK_TIMEOUT",
		envparse.PositiveDuration, 0)
}

func DatabaseUrl() string                      { return databaseUrl }
func DatabaseMaxConns() *int                   { return databaseMaxConns }
func JWTSecret() []byte                        { return jwtSecret }
func Host() string                             { return host }
func ListenAddr() string                       { return listenAddr }
func AccessTokenValidDuration() time.Duration  { return accessTokenValidDuration }
func RefreshTokenValidDuration() time.Duration { return refreshTokenValidDuration }
func ResetTokenValidDuration() time.Duration   { return resetTokenValidDuration }
func LoginLinkValidDuration() time.Duration    { return loginLinkValidDuration }
func MFAChallengeValidDuration() time.Duration { return mfaChallengeValidDuration }
func TrustedDeviceValidDuration() time.Duration { return trustedDeviceValidDuration }
func BcryptCost() int                          { return bcryptCost }
func LoginLockoutThreshold() int               { return loginLockoutThreshold }
func LoginLockoutDuration() time.Duration      { return loginLockoutDuration }
func MFAAttemptLimit() int                     { return mfaAttemptLimit }
func MFAAttemptWindow() time.Duration          { return mfaAttemptWindow }
func SessionRetention() time.Duration          { return sessionRetention }
func Registration() RegistrationMode           { return registration }
func UserEmailVerificationRequired() bool      { return userEmailVerificationRequired }
func GetMailerConfig() MailerConfig            { return mailerConfig }
func SentryDSN() string                        { return sentryDSN }
func SentryDebug() bool                        { return sentryDebug }
func SentryEnvironment() string                { return sentryEnvironment }
func ServerShutdownDelayDuration() *time.Duration { return serverShutdownDelayDuration }
func CleanupSessionCron() *string              { return cleanupSessionCron }
func CleanupSessionTimeout() time.Duration     { return cleanupSessionTimeout }
func CleanupMFAChallengeCron() *string         { return cleanupMFAChallengeCron }
func CleanupMFAChallengeTimeout() time.Duration { return cleanupMFAChallengeTimeout }
func CleanupTrustedDeviceCron() *string        { return cleanupTrustedDeviceCron }
func CleanupTrustedDeviceTimeout() time.Duration { return cleanupTrustedDeviceTimeout }
func CleanupLoginLinkCron() *string            { return cleanupLoginLinkCron }
func CleanupLoginLinkTimeout() time.Duration   { return cleanupLoginLinkTimeout }
