// ABOUTME: Wire types returned by the management API.
// ABOUTME: Plugins, config blocks, pairings, users, settings and host status.

package api

// Plugin is one entry of the installed or search plugin listings.
type Plugin struct {
	Name             string `json:"name"`
	DisplayName      string `json:"displayName,omitempty"`
	Description      string `json:"description,omitempty"`
	Author           string `json:"author,omitempty"`
	InstalledVersion string `json:"installedVersion,omitempty"`
	LatestVersion    string `json:"latestVersion,omitempty"`
	UpdateAvailable  bool   `json:"updateAvailable"`
	Disabled         bool   `json:"disabled"`
	Verified         bool   `json:"verifiedPlugin"`
	Installed        bool   `json:"installedPlugin"`
}

// ConfigBlock is one configuration entry of a plugin. Only a handful of
// keys are interpreted; the rest is passed through untouched.
type ConfigBlock map[string]any

// HasPlatform reports whether the block declares a platform.
func (b ConfigBlock) HasPlatform() bool {
	_, ok := b["platform"]
	return ok
}

// BridgeUsername returns _bridge.username or "".
func (b ConfigBlock) BridgeUsername() string {
	bridge, ok := b["_bridge"].(map[string]any)
	if !ok {
		return ""
	}
	username, _ := bridge["username"].(string)
	return username
}

// Pairing is a controller pairing scoped to a bridge identity.
type Pairing struct {
	ID          string `json:"_id"`
	Username    string `json:"_username"`
	Main        bool   `json:"_main"`
	Category    string `json:"_category"`
	DisplayName string `json:"displayName"`
	SetupCode   string `json:"_setupCode,omitempty"`
	IsPaired    bool   `json:"_isPaired"`
	Accessories int    `json:"accessories"`
}

type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Admin     bool   `json:"admin"`
	OTPActive bool   `json:"otpActive"`
}

// UserInput is the body of add and update calls. An empty Password leaves
// the stored password unchanged on update.
type UserInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	Admin    bool   `json:"admin"`
}

type Settings struct {
	Env Env `json:"env"`
}

type Env struct {
	ServiceMode            bool   `json:"serviceMode"`
	RecommendChildBridges  bool   `json:"recommendChildBridges"`
	HomebridgeInstanceName string `json:"homebridgeInstanceName,omitempty"`
	PackageName            string `json:"packageName,omitempty"`
	PackageVersion         string `json:"packageVersion,omitempty"`
	Platform               string `json:"platform,omitempty"`
}

type CPUStatus struct {
	CurrentLoad float64   `json:"currentLoad"`
	PerCore     []float64 `json:"perCore,omitempty"`
	Cores       int       `json:"cores"`
}

type RAMStatus struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"usedPercent"`
}
