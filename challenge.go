package mailgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailgate/mailgate/internal/flows"
	"github.com/mailgate/mailgate/internal/otp"
)

// ChallengeService is the challenge half of the system: the state machine,
// the issuer, and the answer verifier. The identity platform invokes it at
// each step of the custom-auth handshake. It holds no session state of its
// own — every decision is a function of the history passed in.
type ChallengeService struct {
	maxAttempts int
	email       EmailConfig
	sender      EmailSender

	// generate is the passcode source; replaced in tests.
	generate func() (string, error)
}

// NewChallengeService validates cfg and returns a ready service. sender is
// required: a challenge that cannot reach the user is not a challenge.
func NewChallengeService(cfg Config, sender EmailSender) (*ChallengeService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, errors.New("email sender required")
	}
	if cfg.Email.From == "" {
		return nil, errors.New("email from address required")
	}

	return &ChallengeService{
		maxAttempts: cfg.Challenge.MaxAttempts,
		email:       cfg.Email,
		sender:      sender,
		generate:    otp.New,
	}, nil
}

// Define runs the challenge state machine over the session history.
func (s *ChallengeService) Define(attempts []ChallengeAttempt) Decision {
	return flows.Define(attempts, s.maxAttempts)
}

// Create issues the challenge a Define decision asked for. On an empty
// history it generates a fresh passcode and emails it, blocking until the
// delivery channel acknowledges; no code is considered issued unless the
// send succeeds. On a non-empty history it reuses the passcode stashed in
// the last attempt's metadata verbatim and sends nothing.
//
// The returned bundle carries the email as the only public parameter, the
// passcode as the server-only private parameter, and the metadata to attach
// to this attempt.
func (s *ChallengeService) Create(ctx context.Context, attempts []ChallengeAttempt, email string) (ChallengeOutput, error) {
	var passcode string

	if len(attempts) == 0 {
		code, err := s.generate()
		if err != nil {
			return ChallengeOutput{}, err
		}

		sctx, cancel := context.WithTimeout(ctx, s.email.SendTimeout)
		defer cancel()

		body := s.email.Preamble + "\n\n" + code
		if err := s.sender.Send(sctx, email, s.email.From, s.email.Subject, body); err != nil {
			return ChallengeOutput{}, fmt.Errorf("send otp email: %w", err)
		}
		passcode = code
	} else {
		code, err := flows.StashedCode(attempts[len(attempts)-1].Metadata)
		if err != nil {
			return ChallengeOutput{}, err
		}
		passcode = code
	}

	return ChallengeOutput{
		Email:    email,
		Passcode: passcode,
		Metadata: flows.FormatMetadata(passcode),
	}, nil
}

// VerifyAnswer compares a submitted answer against the stored passcode.
// Exact match, no normalization, no side effects: the platform records the
// boolean into the attempt and re-runs Define on the next event.
func (s *ChallengeService) VerifyAnswer(passcode, answer string) bool {
	return flows.AnswerMatches(passcode, answer)
}
