package inverter

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"batteryctl/internal/logger"
	"batteryctl/internal/model"
)

// FroniusClient writes battery operating modes to the local Fronius config
// API. The API uses HTTP digest auth (MD5): the first request collects the
// challenge, the second carries the Authorization header.
type FroniusClient struct {
	Host     string // e.g. "https://192.168.1.40"
	Path     string // batteries config path
	Username string
	Password string

	client *http.Client
	log    zerolog.Logger
}

func NewFroniusClient(host, path, username, password string, timeout time.Duration, verifyTLS bool) *FroniusClient {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	transport := http.DefaultTransport
	if !verifyTLS {
		// The inverter serves a self-signed certificate on the LAN.
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return &FroniusClient{
		Host:     strings.TrimRight(host, "/"),
		Path:     path,
		Username: username,
		Password: password,
		client:   &http.Client{Timeout: timeout, Transport: transport},
		log:      logger.New("fronius-client"),
	}
}

// SetBatteryMode writes the target mode and minimum SOC. The payload keys
// are the Fronius wire format and must not change.
func (c *FroniusClient) SetBatteryMode(ctx context.Context, mode model.Action, targetSoc int) (map[string]any, error) {
	payload := map[string]any{
		"BAT_M0_SOC_MIN":  targetSoc,
		"BAT_M0_SOC_MODE": string(mode),
	}
	resp, err := c.digestRequest(ctx, http.MethodPost, c.Host+c.Path, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fronius write returned status %d", resp.StatusCode)
	}

	c.log.Info().Str("mode", string(mode)).Int("target_soc", targetSoc).Msg("battery mode written")

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode fronius response: %w", err)
		}
		return body, nil
	}
	return map[string]any{"status": resp.StatusCode}, nil
}

func (c *FroniusClient) digestRequest(ctx context.Context, method, rawURL string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	resp, err := c.send(ctx, method, rawURL, body, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	challenge := resp.Header.Get("WWW-Authenticate")
	if challenge == "" {
		challenge = resp.Header.Get("X-WWW-Authenticate")
	}
	resp.Body.Close()
	params := parseDigestChallenge(challenge)
	if len(params) == 0 {
		return nil, fmt.Errorf("unauthorized and no digest challenge present")
	}

	auth, err := c.digestAuthorization(method, rawURL, params)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, method, rawURL, body, auth)
}

func (c *FroniusClient) send(ctx context.Context, method, rawURL string, body []byte, authorization string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build fronius request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fronius request: %w", err)
	}
	return resp, nil
}

func (c *FroniusClient) digestAuthorization(method, rawURL string, params map[string]string) (string, error) {
	realm := params["realm"]
	nonce := params["nonce"]
	if realm == "" || nonce == "" {
		return "", fmt.Errorf("digest challenge missing realm or nonce")
	}
	algorithm := params["algorithm"]
	if algorithm == "" {
		algorithm = "MD5"
	}
	if strings.ToUpper(algorithm) != "MD5" {
		return "", fmt.Errorf("unsupported digest algorithm %q", algorithm)
	}
	qop := params["qop"]
	if qop == "" {
		qop = "auth"
	}
	qop = strings.TrimSpace(strings.Split(qop, ",")[0])

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	uri := parsed.Path
	if uri == "" {
		uri = "/"
	}
	if parsed.RawQuery != "" {
		uri += "?" + parsed.RawQuery
	}

	const nc = "00000001"
	cnonce, err := randomHex(8)
	if err != nil {
		return "", err
	}

	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", c.Username, realm, c.Password))
	ha2 := md5Hex(fmt.Sprintf("%s:%s", strings.ToUpper(method), uri))
	response := md5Hex(fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, nonce, nc, cnonce, qop, ha2))

	fields := []string{
		fmt.Sprintf(`username="%s"`, c.Username),
		fmt.Sprintf(`realm="%s"`, realm),
		fmt.Sprintf(`nonce="%s"`, nonce),
		fmt.Sprintf(`uri="%s"`, uri),
		fmt.Sprintf(`response="%s"`, response),
		fmt.Sprintf(`algorithm="%s"`, algorithm),
		fmt.Sprintf(`qop=%s`, qop),
		fmt.Sprintf(`nc=%s`, nc),
		fmt.Sprintf(`cnonce="%s"`, cnonce),
	}
	if opaque := params["opaque"]; opaque != "" {
		fields = append(fields, fmt.Sprintf(`opaque="%s"`, opaque))
	}
	return "Digest " + strings.Join(fields, ", "), nil
}

// parseDigestChallenge reads a WWW-Authenticate header value into its
// key/value parameters, honoring quoted values with embedded commas.
func parseDigestChallenge(header string) map[string]string {
	header = strings.TrimSpace(header)
	if h := strings.TrimPrefix(header, "Digest"); h != header {
		header = strings.TrimSpace(h)
	}
	if header == "" {
		return nil
	}

	params := make(map[string]string)
	var key, value strings.Builder
	inValue, quoted := false, false
	flush := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			params[strings.ToLower(k)] = strings.TrimSpace(value.String())
		}
		key.Reset()
		value.Reset()
		inValue, quoted = false, false
	}
	for _, r := range header {
		switch {
		case r == '"' && inValue:
			quoted = !quoted
		case r == '=' && !inValue:
			inValue = true
		case r == ',' && !quoted:
			flush()
		case inValue:
			value.WriteRune(r)
		default:
			key.WriteRune(r)
		}
	}
	flush()
	return params
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate cnonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
