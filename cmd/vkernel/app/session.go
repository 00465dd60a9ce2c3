package app

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/stacklok/vkernel/pkg/session"
)

// sessionClaims is the shape of a bootstrap session artifact: a JWT whose
// claims name the session's public key and its granted capabilities, the
// way a deployment hands a guest's operator a signed, portable credential
// instead of wiring entitlements by hand on every vkernel serve restart.
type sessionClaims struct {
	jwt.RegisteredClaims
	Pubkey       string   `json:"pubkey"`
	Entitlements []string `json:"entitlements"`
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Mint and amend signed session bootstrap artifacts",
	}
	cmd.AddCommand(newSessionBootstrapCmd())
	cmd.AddCommand(newSessionGrantCmd())
	return cmd
}

func newSessionBootstrapCmd() *cobra.Command {
	var pubkeyHex, secret, out string
	var grant []string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Mint a signed session artifact naming a public key and its initial entitlements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := decodePubkeyHex(pubkeyHex); err != nil {
				return err
			}
			caps, err := parseCapabilityNames(grant)
			if err != nil {
				return err
			}
			token, err := signSessionToken(secret, pubkeyHex, caps)
			if err != nil {
				return err
			}
			return writeSessionArtifact(cmd, out, token)
		},
	}

	cmd.Flags().StringVar(&pubkeyHex, "pubkey", "", "Hex-encoded 32-byte session public key")
	cmd.Flags().StringSliceVar(&grant, "grant", nil, "Capabilities to grant, e.g. session_lifecycle,time_read")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret the artifact is signed with")
	cmd.Flags().StringVar(&out, "out", "", "File to write the signed artifact to (stdout if empty)")
	_ = cmd.MarkFlagRequired("pubkey")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}

func newSessionGrantCmd() *cobra.Command {
	var in, secret, out string
	var add []string

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Add capabilities to an existing session artifact, reissuing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readSessionArtifact(in)
			if err != nil {
				return err
			}
			pubkeyHex, existing, err := parseSessionToken(secret, token)
			if err != nil {
				return err
			}
			added, err := parseCapabilityNames(add)
			if err != nil {
				return err
			}
			reissued, err := signSessionToken(secret, pubkeyHex, mergeCapabilities(existing, added))
			if err != nil {
				return err
			}
			return writeSessionArtifact(cmd, out, reissued)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "File the existing session artifact is read from (stdin if empty)")
	cmd.Flags().StringSliceVar(&add, "grant", nil, "Capabilities to add")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret the artifact was signed with")
	cmd.Flags().StringVar(&out, "out", "", "File to write the reissued artifact to (stdout if empty)")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}

func decodePubkeyHex(raw string) ([32]byte, error) {
	var pubkey [32]byte
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return pubkey, fmt.Errorf("session: pubkey is not valid hex: %w", err)
	}
	if len(decoded) != len(pubkey) {
		return pubkey, fmt.Errorf("session: pubkey must decode to %d bytes, got %d", len(pubkey), len(decoded))
	}
	copy(pubkey[:], decoded)
	return pubkey, nil
}

func parseCapabilityNames(names []string) ([]session.Capability, error) {
	caps := make([]session.Capability, 0, len(names))
	for _, name := range names {
		cap, ok := session.ParseCapability(name)
		if !ok {
			return nil, fmt.Errorf("session: unknown capability %q", name)
		}
		caps = append(caps, cap)
	}
	return caps, nil
}

func mergeCapabilities(existing []string, added []session.Capability) []session.Capability {
	seen := make(map[string]struct{}, len(existing)+len(added))
	merged := make([]session.Capability, 0, len(existing)+len(added))
	for _, name := range existing {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if cap, ok := session.ParseCapability(name); ok {
			merged = append(merged, cap)
		}
	}
	for _, cap := range added {
		if _, dup := seen[cap.String()]; dup {
			continue
		}
		seen[cap.String()] = struct{}{}
		merged = append(merged, cap)
	}
	return merged
}

func signSessionToken(secret, pubkeyHex string, caps []session.Capability) (string, error) {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.String()
	}

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "vkernel",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		Pubkey:       pubkeyHex,
		Entitlements: names,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("session: signing artifact: %w", err)
	}
	return signed, nil
}

func parseSessionToken(secret, raw string) (pubkeyHex string, entitlements []string, err error) {
	var claims sessionClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("session: parsing artifact: %w", err)
	}
	return claims.Pubkey, claims.Entitlements, nil
}

func readSessionArtifact(path string) (string, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = readAllStdin()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("session: reading artifact: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func readAllStdin() ([]byte, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, nil
			}
			return buf, err
		}
	}
}

func writeSessionArtifact(cmd *cobra.Command, path, token string) error {
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("session: writing artifact: %w", err)
	}
	return nil
}
