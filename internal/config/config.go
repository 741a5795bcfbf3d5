package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

const (
	VectorBackendChroma   = "chroma"
	VectorBackendPGVector = "pgvector"
	VectorBackendMemory   = "memory"

	HistoryBackendFirestore = "firestore"
	HistoryBackendMemory    = "memory"

	AuthBackendFirebase = "firebase"
	AuthBackendNone     = "none"
)

type Config struct {
	Mode Mode

	Port     string
	LogLevel string

	// LLM / embeddings
	GoogleAPIKey   string
	ChatModel      string
	EmbeddingModel string
	UseMockLLM     bool
	EmbedBatchSize int

	// Vector store
	VectorBackend   string
	ChromaURL       string
	ChromaAPIKey    string
	ChromaTenant    string
	ChromaDatabase  string
	CollectionName  string
	PGVectorDSN     string
	VectorDimension int

	// History + identity
	HistoryBackend          string
	AuthBackend             string
	FirebaseProjectID       string
	FirebaseCredentialsPath string
	FirebaseCredentialsJSON string

	// HTTP
	AllowedOrigins     []string
	AllowedOriginRegex string
	MaxUploadBytes     int64

	// RAG / chunking
	ChunkSize    int
	ChunkOverlap int
	RetrieverK   int
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads an optional .env file and then the environment, applies
// defaults and validates the result. A missing .env is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() (*Config, error) {
	// Cloud is the default; the in-process backends are opt-in only.
	mode := ModeCloud
	if strings.EqualFold(getEnv("DOCCHAT_MODE", string(ModeCloud)), string(ModeLocal)) {
		mode = ModeLocal
	}
	googleKey := os.Getenv("GOOGLE_API_KEY")

	vectorDef, historyDef, authDef := VectorBackendMemory, HistoryBackendMemory, AuthBackendNone
	if mode == ModeCloud {
		vectorDef, historyDef, authDef = VectorBackendChroma, HistoryBackendFirestore, AuthBackendFirebase
	}

	cfg := &Config{
		Mode:     mode,
		Port:     getEnv("PORT", "8000"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		GoogleAPIKey:   googleKey,
		ChatModel:      getEnv("CHAT_MODEL", "gemini-2.5-flash"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		UseMockLLM:     getBoolEnv("DOCCHAT_USE_MOCK_LLM", mode == ModeLocal && googleKey == ""),

		VectorBackend:  strings.ToLower(getEnv("VECTOR_BACKEND", vectorDef)),
		ChromaURL:      strings.TrimRight(getEnv("CHROMA_URL", "https://api.trychroma.com"), "/"),
		ChromaAPIKey:   os.Getenv("CHROMA_API_KEY"),
		ChromaTenant:   os.Getenv("CHROMA_TENANT"),
		ChromaDatabase: os.Getenv("CHROMA_DATABASE"),
		CollectionName: getEnv("COLLECTION_NAME", "retail_chatbot_collection"),
		PGVectorDSN:    os.Getenv("PGVECTOR_DSN"),

		HistoryBackend:          strings.ToLower(getEnv("HISTORY_BACKEND", historyDef)),
		AuthBackend:             strings.ToLower(getEnv("AUTH_BACKEND", authDef)),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsPath: os.Getenv("FIREBASE_CREDENTIALS_PATH"),
		FirebaseCredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),

		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		AllowedOriginRegex: os.Getenv("ALLOWED_ORIGIN_REGEX"),
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"EMBED_BATCH_SIZE", 100, &cfg.EmbedBatchSize},
		{"VECTOR_DIMENSION", 3072, &cfg.VectorDimension},
		{"CHUNK_SIZE", 1000, &cfg.ChunkSize},
		{"CHUNK_OVERLAP", 200, &cfg.ChunkOverlap},
		{"RETRIEVER_K", 3, &cfg.RetrieverK},
	}
	for _, it := range ints {
		v, err := getIntEnv(it.key, it.def)
		if err != nil {
			return nil, err
		}
		*it.dst = v
	}

	maxMB, err := getIntEnv("MAX_UPLOAD_MB", 20)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxMB) << 20

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once so the
// process fails at startup instead of on the first request.
func (c *Config) Validate() error {
	var missing []string
	var problems []string

	if !c.UseMockLLM && c.GoogleAPIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}

	switch c.VectorBackend {
	case VectorBackendChroma:
		for key, val := range map[string]string{
			"CHROMA_API_KEY":  c.ChromaAPIKey,
			"CHROMA_TENANT":   c.ChromaTenant,
			"CHROMA_DATABASE": c.ChromaDatabase,
		} {
			if val == "" {
				missing = append(missing, key)
			}
		}
	case VectorBackendPGVector:
		if c.PGVectorDSN == "" {
			missing = append(missing, "PGVECTOR_DSN")
		}
		if c.VectorDimension <= 0 {
			problems = append(problems, "VECTOR_DIMENSION must be positive")
		}
	case VectorBackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown VECTOR_BACKEND %q", c.VectorBackend))
	}

	switch c.HistoryBackend {
	case HistoryBackendFirestore:
		if c.FirebaseProjectID == "" {
			missing = append(missing, "FIREBASE_PROJECT_ID")
		}
	case HistoryBackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown HISTORY_BACKEND %q", c.HistoryBackend))
	}

	switch c.AuthBackend {
	case AuthBackendFirebase:
		if c.FirebaseProjectID == "" && !slices.Contains(missing, "FIREBASE_PROJECT_ID") {
			missing = append(missing, "FIREBASE_PROJECT_ID")
		}
	case AuthBackendNone:
	default:
		problems = append(problems, fmt.Sprintf("unknown AUTH_BACKEND %q", c.AuthBackend))
	}

	if c.ChunkSize <= 0 {
		problems = append(problems, "CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, "CHUNK_OVERLAP must be >= 0 and smaller than CHUNK_SIZE")
	}
	if c.RetrieverK <= 0 {
		problems = append(problems, "RETRIEVER_K must be positive")
	}
	if c.EmbedBatchSize <= 0 {
		problems = append(problems, "EMBED_BATCH_SIZE must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		problems = append(problems, "MAX_UPLOAD_MB must be positive")
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		problems = append([]string{"missing required environment variables: " + strings.Join(missing, ", ")}, problems...)
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
