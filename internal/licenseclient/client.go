// Package licenseclient is the device-side SDK for the license server. It
// validates the signed-in user's entitlement against the server, keeps an
// offline snapshot so the device survives network outages, and revalidates
// in the background.
package licenseclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/licensedesk/backend/internal/offline"
)

// Config holds license client configuration
type Config struct {
	ServerURL     string
	Token         string // bearer token of the signed-in user
	CheckInterval time.Duration
}

// Status is the client's view of the entitlement after the last sync
type Status struct {
	IsValid    bool
	Offline    bool // true when the result came from the offline cache
	ExpiresAt  *time.Time
	LicenseKey string
}

// Client talks to the license server on behalf of one signed-in user
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *offline.Cache

	mutex     sync.RWMutex
	status    Status
	profile   *profileInfo
	lastCheck time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

type profileInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type validateResponse struct {
	IsValid   bool       `json:"isValid"`
	ExpiresAt *time.Time `json:"expiresAt"`
	License   *struct {
		LicenseKey string `json:"license_key"`
	} `json:"license"`
}

// ActivateResult is the server's answer to an activation attempt
type ActivateResult struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// New creates a license client. Call Start to begin background
// revalidation.
func New(config Config, cache *offline.Cache) *Client {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 5 * time.Minute
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:    cache,
		stopChan: make(chan struct{}),
	}
}

// Start runs the first sync and launches periodic revalidation
func (c *Client) Start() error {
	_, err := c.ValidateAndSync()
	go c.backgroundCheck()
	return err
}

// Stop halts background revalidation
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

// Status returns the entitlement state from the last sync
func (c *Client) Status() Status {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.status
}

// Activate binds a license key to the signed-in user
func (c *Client) Activate(licenseKey string) (*ActivateResult, error) {
	body, err := json.Marshal(map[string]string{"licenseKey": licenseKey})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.config.ServerURL+"/api/activate-license", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to contact license server: %v", err)
	}
	defer resp.Body.Close()

	var out ActivateResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid response from license server: %v", err)
	}

	if out.Success {
		// Pull fresh state so the offline snapshot covers the new claim
		if _, err := c.ValidateAndSync(); err != nil {
			log.Printf("Post-activation sync failed: %v", err)
		}
	}
	return &out, nil
}

// ValidateAndSync checks entitlement with the server and refreshes the
// offline snapshot. When the server is unreachable the cached snapshot
// decides, and Status.Offline is set. A definitive server "invalid" is
// never overridden by the cache.
func (c *Client) ValidateAndSync() (Status, error) {
	result, err := c.fetchValidation()
	if err != nil {
		// Transport failure only. The cache carries the device until
		// connectivity returns or the snapshot expires.
		valid := c.cache.IsCurrentlyValid()
		status := Status{IsValid: valid, Offline: true}
		if snap := c.cache.Load(); snap != nil {
			expires := snap.ExpiresAt
			status.ExpiresAt = &expires
			status.LicenseKey = snap.LicenseKey
		}

		c.mutex.Lock()
		c.status = status
		c.mutex.Unlock()

		log.Printf("License server unreachable, offline cache says valid=%v: %v", valid, err)
		return status, nil
	}

	status := Status{IsValid: result.IsValid, ExpiresAt: result.ExpiresAt}
	if result.License != nil {
		status.LicenseKey = result.License.LicenseKey
	}

	if result.IsValid && result.ExpiresAt != nil {
		c.saveSnapshot(status)
	} else {
		// Server answered and the entitlement is gone, the stale
		// snapshot must not resurrect it
		if err := c.cache.Clear(); err != nil {
			log.Printf("Failed to clear offline cache: %v", err)
		}
	}

	c.mutex.Lock()
	c.status = status
	c.lastCheck = time.Now()
	c.mutex.Unlock()

	return status, nil
}

// ClearOffline wipes the local snapshot. Call on logout.
func (c *Client) ClearOffline() error {
	c.mutex.Lock()
	c.status = Status{}
	c.mutex.Unlock()
	return c.cache.Clear()
}

func (c *Client) fetchValidation() (*validateResponse, error) {
	req, err := http.NewRequest(http.MethodGet, c.config.ServerURL+"/api/validate-license", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to contact license server: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("license server returned status %d", resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid response from license server: %v", err)
	}
	return &out, nil
}

func (c *Client) saveSnapshot(status Status) {
	profile, err := c.fetchProfile()
	if err != nil {
		log.Printf("Failed to load profile for offline snapshot: %v", err)
		profile = &profileInfo{}
	}

	snap := &offline.Snapshot{
		UserID:        profile.ID,
		Email:         profile.Email,
		FullName:      profile.FullName,
		LicenseKey:    status.LicenseKey,
		ExpiresAt:     *status.ExpiresAt,
		LastValidated: time.Now().UTC(),
	}
	if err := c.cache.Save(snap); err != nil {
		log.Printf("Failed to write offline snapshot: %v", err)
	}
}

func (c *Client) fetchProfile() (*profileInfo, error) {
	c.mutex.RLock()
	cached := c.profile
	c.mutex.RUnlock()
	if cached != nil {
		return cached, nil
	}

	req, err := http.NewRequest(http.MethodGet, c.config.ServerURL+"/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Success bool        `json:"success"`
		Data    profileInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("profile request rejected")
	}

	c.mutex.Lock()
	c.profile = &out.Data
	c.mutex.Unlock()
	return &out.Data, nil
}

// backgroundCheck runs periodic revalidation
func (c *Client) backgroundCheck() {
	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			if _, err := c.ValidateAndSync(); err != nil {
				log.Printf("License revalidation failed: %v", err)
			}
		}
	}
}
