// Package i18n registers the user-facing message catalog and resolves the
// request locale. Catalog keys are the English source strings.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLocale is used when neither the request nor configuration names a supported locale.
var DefaultLocale = language.Indonesian

// Supported locales, Indonesian first as the application default.
var supported = []language.Tag{language.Indonesian, language.English}

var matcher = language.NewMatcher(supported)

// Message keys not owned by domain errors.
const (
	MsgRegistered         = "Registration succeeded! Please check your email to verify your account"
	MsgWelcomeAdmin       = "Welcome, Admin!"
	MsgWelcomeUser        = "You have signed in successfully!"
	MsgVerifiedNow        = "Your account has been verified!"
	MsgAlreadyVerified    = "Your account is already verified"
	MsgVerificationResent = "If the account exists and is unverified, a new verification email has been sent"
	MsgLoggedOut          = "You have been signed out"

	MsgNameRequired     = "Name is required"
	MsgEmailRequired    = "Email is required"
	MsgEmailInvalid     = "Email must be valid"
	MsgEmailTaken       = "Email is already registered"
	MsgPasswordRequired = "Password is required"
	MsgPasswordMin      = "Password must be at least %d characters"
	MsgPasswordMax      = "Password must be at most %d bytes"
	MsgFieldInvalid     = "The %s field is invalid"

	MailVerifySubject = "Verify your email address"
	MailVerifyBody    = "Hello %s,\n\nPlease confirm your email address by opening the link below:\n\n%s\n\nIf you did not create an account, no further action is required.\n"
)

var indonesian = map[string]string{
	MsgRegistered:         "Berhasil Mendaftar! Silahkan mengecek email untuk verifikasi akun kamu!",
	MsgWelcomeAdmin:       "Selamat Datang Admin!",
	MsgWelcomeUser:        "Kamu berhasil Masuk!",
	MsgVerifiedNow:        "Akun anda berhasil diverifikasi!",
	MsgAlreadyVerified:    "Akun anda sudah terverifikasi",
	MsgVerificationResent: "Jika akun terdaftar dan belum terverifikasi, email verifikasi baru telah dikirim",
	MsgLoggedOut:          "Kamu berhasil Keluar!",

	MsgNameRequired:     "Nama harus diisi",
	MsgEmailRequired:    "Email harus diisi",
	MsgEmailInvalid:     "Email harus valid",
	MsgEmailTaken:       "Email sudah terdaftar",
	MsgPasswordRequired: "Password harus diisi",
	MsgPasswordMin:      "Password minimal %d karakter",
	MsgPasswordMax:      "Password maksimal %d byte",
	MsgFieldInvalid:     "Kolom %s tidak valid",

	MailVerifySubject: "Verifikasi alamat email kamu",
	MailVerifyBody:    "Halo %s,\n\nSilahkan konfirmasi alamat email kamu dengan membuka tautan berikut:\n\n%s\n\nJika kamu tidak merasa mendaftar, abaikan email ini.\n",

	// Domain error messages.
	"The given data was invalid":                "Data yang diberikan tidak valid",
	"The email has already been registered":     "Email sudah terdaftar",
	"Registration failed":                       "Gagal Mendaftar!",
	"Invalid email and password combination":    "Kombinasi email dan password salah!",
	"Please verify your account":                "Harap Verifikasi akun kamu!",
	"Google sign-in failed":                     "Gagal masuk dengan Google!",
	"Too many attempts, please try again later": "Terlalu banyak percobaan, silahkan coba lagi nanti",
	"Invalid verification link":                 "Link verifikasi tidak valid!",
	"Account not found":                         "Akun tidak ditemukan",
	"Email verification failed":                 "Gagal verifikasi email!",
	"Please log in first":                       "Silahkan masuk terlebih dahulu",
	"Access denied":                             "Akses ditolak",
	"Page expired, please try again":            "Halaman kedaluwarsa, silahkan coba lagi",
	"Resource not found":                        "Halaman tidak ditemukan",
	"Internal server error":                     "Terjadi kesalahan pada server",
}

func init() {
	for key, value := range indonesian {
		if err := message.SetString(language.Indonesian, key, value); err != nil {
			panic(err)
		}
	}
}

// Keys returns every key with an Indonesian translation.
func Keys() []string {
	keys := make([]string, 0, len(indonesian))
	for key := range indonesian {
		keys = append(keys, key)
	}

	return keys
}

// Match resolves the best supported locale for an explicit preference or an
// Accept-Language header, falling back to fallback.
func Match(preference, acceptLanguage string, fallback language.Tag) language.Tag {
	if preference = strings.TrimSpace(preference); preference != "" {
		if tag, err := language.Parse(preference); err == nil {
			if matched, _, confidence := matcher.Match(tag); confidence >= language.High {
				return base(matched)
			}
		}
	}

	if acceptLanguage = strings.TrimSpace(acceptLanguage); acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
			if matched, _, confidence := matcher.Match(tags...); confidence > language.No {
				return base(matched)
			}
		}
	}

	return fallback
}

// Parse returns the supported tag for s, or fallback when s is empty or unknown.
func Parse(s string, fallback language.Tag) language.Tag {
	return Match(s, "", fallback)
}

// Printer returns a message printer for tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// T translates key with args for tag.
func T(tag language.Tag, key string, args ...any) string {
	return message.NewPrinter(tag).Sprintf(key, args...)
}

// base strips the matcher's -u-rg extension so tags compare cleanly.
func base(tag language.Tag) language.Tag {
	b, _ := tag.Base()
	t, err := language.Compose(b)
	if err != nil {
		return tag
	}

	return t
}
