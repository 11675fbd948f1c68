package main

import (
	"log"
	"os"
	"time"

	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coffeemasters/authcore/adapters/events"
	"github.com/coffeemasters/authcore/adapters/hasher"
	"github.com/coffeemasters/authcore/adapters/ledger"
	"github.com/coffeemasters/authcore/adapters/sessions"
	"github.com/coffeemasters/authcore/adapters/store"
	"github.com/coffeemasters/authcore/adapters/tokenizer"
	"github.com/coffeemasters/authcore/ports"
	"github.com/coffeemasters/authcore/service"
	"github.com/coffeemasters/authcore/transport/http"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Generate a new ECDSA key pair (you would normally load this from somewhere secure)
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}

	listenAddr := envOr("LISTEN_ADDR", ":5050")
	rpID := envOr("RP_ID", "localhost")
	rpName := envOr("RP_NAME", "Coffee Masters")
	rpOrigin := envOr("RP_ORIGIN", "http://localhost:5050")
	dbPath := envOr("DB_PATH", "authcore.db")
	staticDir := envOr("STATIC_DIR", "public")

	var challengeTTL time.Duration
	if raw := os.Getenv("CHALLENGE_TTL"); raw != "" {
		challengeTTL, err = time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Failed to parse CHALLENGE_TTL: %v", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	accountStore, err := store.NewGormAccountStore(db)
	if err != nil {
		log.Fatalf("Failed to initialize account store: %v", err)
	}

	wmLogger := watermill.NewStdLogger(false, false)

	// Challenges, sessions and audit events go to Redis when available,
	// otherwise they stay in-process.
	var (
		challengeLedger ports.ChallengeLedger
		sessionStore    ports.SessionStore
		publisher       message.Publisher
	)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}

		challengeLedger = ledger.NewRedisChallengeLedger(redisClient)
		sessionStore = sessions.NewRedisSessionStore(redisClient)
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		challengeLedger = ledger.NewMemoryChallengeLedger()
		sessionStore = sessions.NewMemorySessionStore()
	}

	eventPub := events.NewWatermillPublisher(publisher)

	authService := service.NewAuthService(
		accountStore,
		sessionStore,
		tokenizer.NewJWTTokenizer(privateKey),
		hasher.NewBcryptHasher(),
		eventPub,
	)

	webauthnService, err := service.NewWebAuthnService(
		service.WebAuthnConfig{
			RPID:         rpID,
			RPName:       rpName,
			RPOrigins:    []string{rpOrigin},
			ChallengeTTL: challengeTTL,
		},
		accountStore,
		challengeLedger,
		eventPub,
	)
	if err != nil {
		log.Fatalf("Failed to configure WebAuthn: %v", err)
	}

	// Setup Gin router
	router := http.SetupRouter(authService, webauthnService, staticDir)

	// Start server
	if err := router.Run(listenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
