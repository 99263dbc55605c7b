package upload

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an upload grant stays valid
const DefaultTTL = 5 * time.Minute

var (
	// ErrMissingParameters is returned when a grant is requested without a filename or content type
	ErrMissingParameters = errors.New("missing filename or contentType")
	// ErrExpired is returned for upload credentials past their expiry
	ErrExpired = errors.New("upload credentials expired")
	// ErrBadSignature is returned when upload credentials do not match the key
	ErrBadSignature = errors.New("upload signature mismatch")
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	extension   = regexp.MustCompile(`\.[^/.]+$`)
)

const maxFilenameLength = 64

// Grant is a time-boxed write credential plus the eventual public read reference
type Grant struct {
	UploadURL string    `json:"uploadUrl"`
	ImageURL  string    `json:"imageUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Credentials are the query parameters carried by an upload URL
type Credentials struct {
	ContentType string
	Expires     string
	Signature   string
}

// Presigner issues and verifies HMAC-signed upload URLs
type Presigner struct {
	publicURL string
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
	newID     func() string
}

// NewPresigner creates a Presigner serving objects below publicURL
func NewPresigner(publicURL, secret string) (*Presigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("upload secret is required")
	}
	u, err := url.Parse(publicURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid public url %q", publicURL)
	}
	return &Presigner{
		publicURL: publicURL,
		secret:    []byte(secret),
		ttl:       DefaultTTL,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Issue creates an upload grant for a photo belonging to userID
func (p *Presigner) Issue(userID, filename, contentType string) (*Grant, error) {
	if strings.TrimSpace(filename) == "" || strings.TrimSpace(contentType) == "" {
		return nil, ErrMissingParameters
	}

	now := p.now()
	base := extension.ReplaceAllString(sanitizeFilename(filename), "")
	if base == "" {
		base = "photo"
	}
	key := fmt.Sprintf("users/%s/items/%d-%s-%s.jpg", sanitizeSegment(userID), now.UnixMilli(), p.newID(), base)

	expiresAt := now.Add(p.ttl).UTC().Truncate(time.Second)
	expires := strconv.FormatInt(expiresAt.Unix(), 10)

	query := url.Values{}
	query.Set("contentType", contentType)
	query.Set("expires", expires)
	query.Set("signature", p.sign(key, contentType, expires))

	return &Grant{
		UploadURL: joinURL(p.publicURL, "uploads/"+key) + "?" + query.Encode(),
		ImageURL:  joinURL(p.publicURL, "images/"+key),
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks upload credentials against the key they were issued for
func (p *Presigner) Verify(key string, c Credentials) error {
	expires, err := strconv.ParseInt(c.Expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expiry", ErrBadSignature)
	}
	given, err := hex.DecodeString(c.Signature)
	if err != nil {
		return fmt.Errorf("%w: bad encoding", ErrBadSignature)
	}
	want, _ := hex.DecodeString(p.sign(key, c.ContentType, c.Expires))
	if !hmac.Equal(given, want) {
		return ErrBadSignature
	}
	if p.now().Unix() > expires {
		return ErrExpired
	}
	return nil
}

// KeyFor returns the object key behind an image URL issued by this Presigner
func (p *Presigner) KeyFor(imageURL string) (string, bool) {
	return strings.CutPrefix(imageURL, joinURL(p.publicURL, "images/"))
}

// OwnedBy reports whether key lies under userID's upload prefix
func OwnedBy(userID, key string) bool {
	return strings.HasPrefix(key, "users/"+sanitizeSegment(userID)+"/")
}

func (p *Presigner) sign(key, contentType, expires string) string {
	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "PUT\n%s\n%s\n%s", key, contentType, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// sanitizeFilename keeps the last path element of a client filename, limited to safe characters
func sanitizeFilename(filename string) string {
	trimmed := strings.TrimSpace(filename)
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	safe := unsafeChars.ReplaceAllString(trimmed, "_")
	if len(safe) > maxFilenameLength {
		safe = safe[len(safe)-maxFilenameLength:]
	}
	return safe
}

func sanitizeSegment(s string) string {
	safe := unsafeChars.ReplaceAllString(s, "_")
	if safe == "" || safe == "." || safe == ".." {
		return "_"
	}
	return safe
}

func joinURL(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}
