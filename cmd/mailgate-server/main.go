// Command mailgate-server runs the full passwordless login flow behind a
// local HTTP server. With no environment set it is self-contained: an
// embedded miniredis holds the identity state and OTP mail is printed to
// stdout.
//
// Environment:
//
//	LISTEN_ADDR  listen address            (default ":8080")
//	REDIS_ADDR   external Redis            (default: embedded miniredis)
//	SMTP_ADDR    SMTP relay host:port      (default: print mail to stdout)
//	SMTP_USER    SMTP auth user
//	SMTP_PASS    SMTP auth password
//	OTP_FROM     mail from address         (default "login@localhost")
//	OTP_SUBJECT  mail subject
//	OTP_TEXT     mail body preamble
//	SEED_EMAIL   register this address at boot
//
// Try it:
//
//	SEED_EMAIL=alice@example.com go run ./cmd/mailgate-server
//	curl -s localhost:8080/auth/login -d '{"email":"alice@example.com"}'
//	# read the code from the server log, then:
//	curl -i -c jar.txt localhost:8080/auth/otp \
//	  -d '{"email":"alice@example.com","otp":"<CODE>","session":"<SESSION>"}'
//	curl -s -b jar.txt localhost:8080/auth/status
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"log"
	"net/http"
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mailgate/mailgate"
	"github.com/mailgate/mailgate/email"
	"github.com/mailgate/mailgate/httpapi"
	"github.com/mailgate/mailgate/identity"
	"github.com/mailgate/mailgate/jwt"
)

func main() {
	cfg := mailgate.DefaultConfig()
	cfg.Email.From = envOr("OTP_FROM", "login@localhost")
	if v := os.Getenv("OTP_SUBJECT"); v != "" {
		cfg.Email.Subject = v
	}
	if v := os.Getenv("OTP_TEXT"); v != "" {
		cfg.Email.Preamble = v
	}

	// ---------- infrastructure ----------
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			log.Fatal("miniredis:", err)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
		log.Println("using embedded miniredis at", redisAddr)
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	var sender mailgate.EmailSender
	if smtpAddr := os.Getenv("SMTP_ADDR"); smtpAddr != "" {
		sender = &email.SMTPSender{
			Addr:     smtpAddr,
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
		}
	} else {
		sender = &email.WriterSender{W: os.Stdout}
	}

	// ---------- signing + verification ----------
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatal("generate signing key:", err)
	}
	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:  cfg.Token.AccessTTL,
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		KeyID:      "boot",
		PrivateKey: priv,
	})
	if err != nil {
		log.Fatal("jwt manager:", err)
	}
	verifier, err := jwt.NewVerifier(cfg.Token.Issuer, cfg.Token.Audience, 0, signer)
	if err != nil {
		log.Fatal("jwt verifier:", err)
	}

	// ---------- challenge + identity + engine ----------
	challenges, err := mailgate.NewChallengeService(cfg, sender)
	if err != nil {
		log.Fatal("challenge service:", err)
	}

	provider, err := identity.NewProvider(rdb, signer, challenges, identity.Config{
		RefreshTTL: cfg.Token.RefreshTTL,
	})
	if err != nil {
		log.Fatal("identity provider:", err)
	}

	engine, err := mailgate.New().
		WithConfig(cfg).
		WithIdentity(provider).
		WithVerifier(verifier).
		WithAuditSink(mailgate.NewJSONWriterSink(os.Stderr)).
		Build()
	if err != nil {
		log.Fatal("engine build:", err)
	}
	defer engine.Close()

	if seed := os.Getenv("SEED_EMAIL"); seed != "" {
		subject, err := provider.RegisterUser(context.Background(), seed)
		if err != nil {
			log.Fatal("seed user:", err)
		}
		log.Printf("seeded %s as subject %s", seed, subject)
	}

	addr := envOr("LISTEN_ADDR", ":8080")
	log.Println("listening on", addr)
	log.Fatal(http.ListenAndServe(addr, httpapi.New(engine).Routes()))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
