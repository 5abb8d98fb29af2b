package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/dgrijalva/jwt-go"
	"github.com/go-chi/render"
	"golang.org/x/crypto/bcrypt"
)

var (
	// JWT_HMAC_SECRET is replaced from the configuration at startup; the
	// baked-in value only ever signs tokens for a DEV issuer.
	JWT_HMAC_SECRET []byte        = []byte("gosteer-dev-only-do-not-ship")
	JWT_LIFESPAN    time.Duration = 12 * time.Hour // a working day in the cab
)

type ctxKey int

const jwtCtxKey ctxKey = iota

//---
// Structs
//---

// User is a local operator account.
type User struct {
	ID       int    `storm:"increment"` // pk
	Username string `storm:"unique"`
	Name     string
	Password string
	Admin    bool
}

// SetPassword stores the bcrypt hash of the provided plain text.
func (u *User) SetPassword(pass []byte) {
	hash, _ := bcrypt.GenerateFromPassword(pass, bcrypt.DefaultCost)
	u.Password = string(hash)
}

// VerifyPassword compares User.Password with the provided plain text.
// Returns values directly as provided by the bcrypt library for
// downstream processing.
func (u *User) VerifyPassword(pass []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), pass)
}

//---
// Generic payloads
//---

// Login payload
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (l *LoginPayload) Bind(r *http.Request) error {
	return nil
}

type JWTPayload struct {
	SignedToken string `json:"token"`
}

//---
// Helper functions
//---

// newJWT produces a standard format token for the subject.
func newJWT(sub string) (ts string, err error) {
	now := time.Now().UTC()
	claims := jwt.StandardClaims{
		Issuer:    ENV.JWT_ISSUER,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(JWT_LIFESPAN).Unix(),
		Subject:   sub,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(JWT_HMAC_SECRET)
}

//---
// Views
//---

// Login looks up a user, verifies the password and returns a fresh token.
func Login(w http.ResponseWriter, r *http.Request) {
	data := &LoginPayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	var user User
	if err := ENV.DB.One("Username", data.Username, &user); err != nil {
		if err == storm.ErrNotFound {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	if err := user.VerifyPassword([]byte(data.Password)); err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			render.Render(w, r, ErrPermissionDenied(errors.New("invalid password")))
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}

	tokenString, err := newJWT(user.Username)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	render.JSON(w, r, JWTPayload{tokenString})
}

// JWTRefresh provides a new token to an already authenticated client.
func JWTRefresh(w http.ResponseWriter, r *http.Request) {
	token := r.Context().Value(jwtCtxKey).(*jwt.Token)
	claims := token.Claims.(*jwt.StandardClaims)

	tokenString, err := newJWT(claims.Subject)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	render.JSON(w, r, JWTPayload{tokenString})
}

//---
// Authentication middleware
//---

var (
	JWTEmpty = errors.New("bearer token not provided")
)

func ValidateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var tokenStr string

		// token from query params, for websocket clients
		tokenStr = r.URL.Query().Get("jwt")

		// token from authorization header
		if tokenStr == "" {
			bearer := r.Header.Get("Authorization")
			if len(bearer) > 7 && strings.ToUpper(bearer[0:6]) == "BEARER" {
				tokenStr = bearer[7:]
			}
		}

		// token from cookie
		if tokenStr == "" {
			if cookie, err := r.Cookie("jwt"); err == nil {
				tokenStr = cookie.Value
			}
		}

		if tokenStr == "" {
			render.Render(w, r, ErrUnauthorized(JWTEmpty))
			return
		}

		token, err := jwt.ParseWithClaims(tokenStr,
			&jwt.StandardClaims{},
			func(*jwt.Token) (interface{}, error) { return JWT_HMAC_SECRET, nil })

		if err != nil {
			msg := errors.New("invalid token")
			if jwterr, ok := err.(*jwt.ValidationError); ok {
				if jwterr.Errors&jwt.ValidationErrorExpired != 0 {
					msg = errors.New("token has expired")
				}
			}
			render.Render(w, r, ErrUnauthorized(msg))
			return
		}

		if !token.Valid {
			render.Render(w, r, ErrUnauthorized(errors.New("invalid token")))
			return
		}

		ctx = context.WithValue(ctx, jwtCtxKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
