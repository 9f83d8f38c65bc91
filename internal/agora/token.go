package agora

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"barlive/internal/livestream"

	"github.com/golang-jwt/jwt/v5"
	"github.com/teris-io/shortid"
)

// Channel participant roles encoded into tokens.
const (
	RolePublisher  = "publisher"
	RoleSubscriber = "subscriber"
)

// maxChannelNameBytes is the hard limit the media service puts on channel
// names.
const maxChannelNameBytes = 64

// channelPrefixLen bounds the account-derived prefix so the timestamp and the
// random suffix always fit under the channel name limit.
const channelPrefixLen = 24

type ChannelTokenClaims struct {
	ChannelName string `json:"channel_name"`
	UID         int64  `json:"uid"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues channel names and signed, time-boxed channel tokens for
// broadcasters and viewers.
type TokenService struct {
	appID          string
	appCertificate string
	ttl            time.Duration
	sid            *shortid.Shortid
}

func NewTokenService(appID, appCertificate string, ttl time.Duration) (*TokenService, error) {
	if appID == "" || appCertificate == "" {
		return nil, fmt.Errorf("agora app id and certificate are required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	sid, err := shortid.New(1, shortid.DefaultABC, randomSeed())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize channel name generator: %w", err)
	}

	return &TokenService{
		appID:          appID,
		appCertificate: appCertificate,
		ttl:            ttl,
		sid:            sid,
	}, nil
}

func randomSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(b[:])
}

// GenerateChannelName builds a unique ASCII channel name under 64 bytes from
// an account prefix, a millisecond timestamp and a random suffix, so
// concurrent starts by the same host never collide.
func (s *TokenService) GenerateChannelName(accountID string) (string, error) {
	suffix, err := s.sid.Generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate channel suffix: %w", err)
	}

	name := fmt.Sprintf("%s-%d-%s", sanitizePrefix(accountID), time.Now().UnixMilli(), suffix)
	if len(name) > maxChannelNameBytes {
		name = name[:maxChannelNameBytes]
	}
	return name, nil
}

// sanitizePrefix keeps only ASCII letters and digits from the account id,
// truncated to a fixed budget.
func sanitizePrefix(accountID string) string {
	var b strings.Builder
	for _, r := range accountID {
		if b.Len() >= channelPrefixLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "ch"
	}
	return b.String()
}

func randomUID() int64 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UnixNano()&0x7fffffff | 1
	}
	uid := int64(binary.BigEndian.Uint32(b[:]) & 0x7fffffff)
	if uid == 0 {
		uid = 1
	}
	return uid
}

func (s *TokenService) signToken(channelName string, uid int64, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ChannelTokenClaims{
		ChannelName: channelName,
		UID:         uid,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.appID,
			Subject:   channelName,
		},
	})

	signed, err := token.SignedString([]byte(s.appCertificate))
	if err != nil {
		return "", fmt.Errorf("failed to sign channel token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a channel token and returns its claims.
func (s *TokenService) ParseToken(tokenString string) (*ChannelTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ChannelTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.appCertificate), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ChannelTokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid channel token")
	}
	return claims, nil
}

// IssuePublisherCredential issues a fresh channel with a broadcaster token.
func (s *TokenService) IssuePublisherCredential(accountID string) (*livestream.ChannelCredential, error) {
	channelName, err := s.GenerateChannelName(accountID)
	if err != nil {
		return nil, err
	}

	uid := randomUID()
	token, err := s.signToken(channelName, uid, RolePublisher)
	if err != nil {
		return nil, err
	}

	return &livestream.ChannelCredential{
		ChannelName: channelName,
		UID:         uid,
		Token:       token,
	}, nil
}

// IssueSubscriberCredential issues a viewer token for an existing channel.
func (s *TokenService) IssueSubscriberCredential(channelName string) (*livestream.ChannelCredential, error) {
	uid := randomUID()
	token, err := s.signToken(channelName, uid, RoleSubscriber)
	if err != nil {
		return nil, err
	}

	return &livestream.ChannelCredential{
		ChannelName: channelName,
		UID:         uid,
		Token:       token,
	}, nil
}
