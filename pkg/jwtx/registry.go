package jwtx

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")

	ErrNoKey     = errors.New("jwtx: key not found")
	ErrActiveKey = errors.New("jwtx: cannot evict the active signing key")
)

// VerifyOptions captures common expectations used during verification.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience values the token must contain (claims.aud). Empty means "don't care".
	Audience []string

	// Leeway allows small clock skew when validating exp/nbf/iat.
	// Because time sync is never perfect.
	Leeway time.Duration

	// Now supplies the verification clock. Nil means time.Now.
	Now func() time.Time
}

// verificationKey is public key material retained for a kid.
type verificationKey struct {
	alg string
	pub any
	jwk JWK
}

// keyring is an immutable snapshot of registry state. Readers load it via a
// single atomic pointer so verification never observes a half-applied
// rotation or eviction.
type keyring struct {
	active Signer
	keys   map[string]verificationKey
	order  []string // insertion order, for stable JWKS output
}

// Registry holds the active signing key and the set of verification keys.
//
// Rotation appends a new active key and retains the previous key's
// verification material until an explicit Evict, so tokens signed before
// rotation remain verifiable. Reads are lock-free snapshot loads; Rotate and
// Evict are rare administrative writes serialized by a mutex and published
// with a copy-on-write swap.
type Registry struct {
	mu   sync.Mutex // serializes writers only
	snap atomic.Pointer[keyring]
}

// NewRegistry returns an empty Registry. Minting fails until the first
// Rotate installs an active key.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(&keyring{keys: make(map[string]verificationKey)})
	return r
}

// Rotate installs s as the active signing key. The previous active key's
// verification material is retained so outstanding tokens keep verifying.
func (r *Registry) Rotate(s Signer) error {
	if s == nil {
		return errors.New("jwtx: nil signer")
	}
	if err := s.Validate(); err != nil {
		return err
	}

	j := s.PublicJWK()
	pub, err := parseJWKToKey(j)
	if err != nil {
		return fmt.Errorf("jwtx: rotate %q: %w", s.KID(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	next := cur.clone()
	next.active = s
	if _, exists := next.keys[s.KID()]; !exists {
		next.order = append(next.order, s.KID())
	}
	next.keys[s.KID()] = verificationKey{alg: s.Alg(), pub: pub, jwk: j}

	r.snap.Store(next)
	return nil
}

// Evict removes a verification key. Tokens referencing that kid thereafter
// fail with ErrUnknownKID. Evicting the active signing key is refused; this
// is an explicit operator action, not automatic.
func (r *Registry) Evict(kid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if cur.active != nil && cur.active.KID() == kid {
		return ErrActiveKey
	}
	if _, ok := cur.keys[kid]; !ok {
		return ErrNoKey
	}

	next := cur.clone()
	delete(next.keys, kid)
	order := make([]string, 0, len(next.order)-1)
	for _, k := range next.order {
		if k != kid {
			order = append(order, k)
		}
	}
	next.order = order

	r.snap.Store(next)
	return nil
}

// ActiveSigner returns the current signing key, or nil when none is installed.
func (r *Registry) ActiveSigner() Signer {
	return r.snap.Load().active
}

// ActiveKID returns the kid of the active signing key, or "".
func (r *Registry) ActiveKID() string {
	if s := r.snap.Load().active; s != nil {
		return s.KID()
	}
	return ""
}

// HasKey reports whether verification material for kid is present.
func (r *Registry) HasKey(kid string) bool {
	_, ok := r.snap.Load().keys[kid]
	return ok
}

// KIDs returns the verification key identifiers in insertion order.
func (r *Registry) KIDs() []string {
	ring := r.snap.Load()
	kids := make([]string, len(ring.order))
	copy(kids, ring.order)
	return kids
}

// JWKS renders the verification key set for publishing. The excluded HTTP
// layer serves this at the JWKS endpoint.
func (r *Registry) JWKS() JWKS {
	ring := r.snap.Load()
	out := JWKS{Keys: make([]JWK, 0, len(ring.order))}
	for _, kid := range ring.order {
		out.Keys = append(out.Keys, ring.keys[kid].jwk)
	}
	return out
}

// Verify validates a serialized token against the verification key set and
// returns its claims. Failures map onto the typed errors above: ErrUnknownKID,
// ErrInvalidSig, ErrExpired, ErrMalformed and friends. Verify never mutates
// registry state.
func (r *Registry) Verify(tokenStr string, opts VerifyOptions) (Claims, error) {
	ring := r.snap.Load()

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{AlgorithmEdDSA, AlgorithmRS256, AlgorithmES256}),
		jwt.WithTimeFunc(func() time.Time { return now() }),
		jwt.WithLeeway(opts.Leeway),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMalformed
		}
		vk, ok := ring.keys[kid]
		if !ok {
			return nil, ErrUnknownKID
		}
		if t.Method.Alg() != vk.alg {
			return nil, ErrAlgMismatch
		}
		return vk.pub, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownKID):
			return Claims{}, ErrUnknownKID
		case errors.Is(err, ErrAlgMismatch):
			return Claims{}, ErrAlgMismatch
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Claims{}, ErrNotYetValid
		case errors.Is(err, ErrMalformed), errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrMalformed
		default:
			return Claims{}, fmt.Errorf("jwtx: verify: %w", err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrMalformed
	}

	if err := claims.ValidateIssuer(opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(opts.Audience); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}

func (k *keyring) clone() *keyring {
	next := &keyring{
		active: k.active,
		keys:   make(map[string]verificationKey, len(k.keys)+1),
		order:  make([]string, len(k.order)),
	}
	for kid, vk := range k.keys {
		next.keys[kid] = vk
	}
	copy(next.order, k.order)
	return next
}
