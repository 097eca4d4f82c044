package gmail

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes requested by the sorter: read headers, move messages, create labels.
var Scopes = []string{
	gmailv1.GmailModifyScope,
	gmailv1.GmailLabelsScope,
}

// AuthConfig locates credentials and drives the consent prompt.
type AuthConfig struct {
	ConfigDir       string        // holds client_secret.json and token.json
	RedirectTimeout time.Duration // loopback wait before falling back to paste
	Prompt          io.Writer     // consent instructions; os.Stderr when nil
	Input           io.Reader     // pasted code; os.Stdin when nil
	OpenBrowser     bool          // try to launch the consent URL
}

// NewService returns an authenticated Gmail service. A cached token in
// ConfigDir is validated with a profile call; when missing or rejected the
// user is sent through the consent flow and the new token is cached.
func NewService(ctx context.Context, cfg AuthConfig, logger *zap.Logger) (*gmailv1.Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prompt == nil {
		cfg.Prompt = os.Stderr
	}
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.RedirectTimeout <= 0 {
		cfg.RedirectTimeout = 120 * time.Second
	}

	credPath := filepath.Join(cfg.ConfigDir, "client_secret.json")
	b, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials at %s: %w", credPath, err)
	}
	oauthCfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}

	tokFile := filepath.Join(cfg.ConfigDir, "token.json")
	if tok, err := readToken(tokFile); err == nil {
		svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
		if err == nil {
			_, err = svc.Users.GetProfile("me").Context(ctx).Do()
		}
		if err == nil {
			logger.Debug("Using cached token", zap.String("path", tokFile))
			return svc, nil
		}
		logger.Info("Cached token rejected, re-authenticating", zap.Error(err))
		os.Remove(tokFile)
	}

	tok, err := getTokenFromWeb(ctx, oauthCfg, cfg)
	if err != nil {
		return nil, err
	}
	if err := saveToken(tokFile, tok); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}

	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	f.Close()
	return os.Rename(tmp, path)
}

// getTokenFromWeb runs a loopback HTTP server to capture the auth code.
// If that fails or times out, it falls back to manual paste (code or URL).
func getTokenFromWeb(ctx context.Context, oauthCfg *oauth2.Config, cfg AuthConfig) (*oauth2.Token, error) {
	codeCh := make(chan string, 1)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err == nil {
		port := ln.Addr().(*net.TCPAddr).Port
		redirect := fmt.Sprintf("http://127.0.0.1:%d/", port)
		oldRedirect := oauthCfg.RedirectURL
		oauthCfg.RedirectURL = redirect

		mux := http.NewServeMux()
		srv := &http.Server{
			ReadHeaderTimeout: 5 * time.Second,
			Handler:           mux,
		}
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Authentication complete. You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
			go func() { _ = srv.Shutdown(context.Background()) }()
		})
		go func() { _ = srv.Serve(ln) }()

		authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		fmt.Fprintln(cfg.Prompt, "Open this URL in your browser to authorize gmailsorter:")
		fmt.Fprintln(cfg.Prompt, authURL)
		fmt.Fprintf(cfg.Prompt, "Waiting for redirect on %s …\n", redirect)
		if cfg.OpenBrowser {
			_ = OpenBrowser(authURL)
		}

		select {
		case <-ctx.Done():
			_ = srv.Shutdown(context.Background())
			oauthCfg.RedirectURL = oldRedirect
			return nil, ctx.Err()
		case code := <-codeCh:
			tok, err := exchange(ctx, oauthCfg, code, cfg.Prompt)
			// Restore redirect only after the exchange to avoid invalid_grant.
			oauthCfg.RedirectURL = oldRedirect
			return tok, err
		case <-time.After(cfg.RedirectTimeout):
			_ = srv.Shutdown(context.Background())
			oauthCfg.RedirectURL = oldRedirect
			fmt.Fprintln(cfg.Prompt, "Timeout waiting for redirect; falling back to manual paste.")
		}
	}

	authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(cfg.Prompt, "Open this URL in your browser to authorize gmailsorter:")
	fmt.Fprintln(cfg.Prompt, authURL)
	fmt.Fprintln(cfg.Prompt, "")
	fmt.Fprintln(cfg.Prompt, "Paste the AUTH CODE itself or the FULL redirect URL here, then press Enter.")
	fmt.Fprint(cfg.Prompt, "> ")

	sc := bufio.NewScanner(cfg.Input)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read auth code: %w", err)
		}
		return nil, errors.New("empty authorization code")
	}
	code, err := codeFromInput(sc.Text())
	if err != nil {
		return nil, err
	}
	return exchange(ctx, oauthCfg, code, cfg.Prompt)
}

func exchange(ctx context.Context, oauthCfg *oauth2.Config, code string, prompt io.Writer) (*oauth2.Token, error) {
	fmt.Fprintln(prompt, "Exchanging code for token…")
	tok, err := oauthCfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	fmt.Fprintln(prompt, "Authentication successful.")
	return tok, nil
}

// codeFromInput accepts either a bare auth code or the full redirect URL.
func codeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}
