package constants

import "os"

// TicksPerBeat is fixed for every score this system produces.
const TicksPerBeat = 480

// GridDivisions is the number of quantization grid lines per beat.
const GridDivisions = 16

const DefaultTempoBPM = 120.0

// MaxMicrosPerBeat is the largest tempo value a MIDI tempo event can hold.
const MaxMicrosPerBeat = 0xFFFFFF

// MaxTimeSignatureValue bounds both time signature fields, each stored in one
// byte of a MIDI meta event.
const MaxTimeSignatureValue = 255

const (
	DefaultBeatsPerMeasure = 4
	DefaultBeatType        = 4
)

const DefaultTitle = "Transcription"

const ScoreVersion = "0.1"

func getEnv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetOutDir() string {
	return getEnv("SCORE_OUT_DIR", "./out")
}

func GetPort() string {
	return getEnv("PORT", "8080")
}

// GetDynamoEndpoint returns "" when no DynamoDB store is configured.
func GetDynamoEndpoint() string {
	return os.Getenv("DYNAMODB_ENDPOINT")
}

func GetDynamoTable() string {
	return getEnv("DYNAMODB_TABLE", "melodyscore-scores")
}

func GetAWSRegion() string {
	return getEnv("AWS_REGION", "us-east-1")
}

func GetCorsOrigin() string {
	return getEnv("CORS_ORIGIN", "http://localhost:3001")
}
