package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	cp "github.com/otiai10/copy"
	"gopkg.in/yaml.v3"
)

var (
	cfgMux   sync.RWMutex
	Minelurk *MinelurkCfg
	Profiles map[string]*ProfileCfg
	Version  = "dev"
)

// MinelurkCfg is the process-wide configuration loaded from
// config/minelurk.yaml.
type MinelurkCfg struct {
	Debug struct {
		Log bool `yaml:"log"`
	} `yaml:"debug"`
	FirstRun         bool   `yaml:"firstRun"`
	LogSaveDirectory string `yaml:"logSaveDirectory"`
	ServerPort       int    `yaml:"serverPort"`
	Discord          struct {
		Enabled                bool     `yaml:"enabled"`
		EnableConnectMessages  bool     `yaml:"enableConnectMessages"`
		EnableEvasionMessages  bool     `yaml:"enableEvasionMessages"`
		EnableIdentityMessages bool     `yaml:"enableIdentityMessages"`
		EnableErrorMessages    bool     `yaml:"enableErrorMessages"`
		BotAdmins              []string `yaml:"botAdmins"`
		ChannelID              string   `yaml:"channelId"`
		Token                  string   `yaml:"token"`
		UseWebhook             bool     `yaml:"useWebhook"`
		WebhookURL             string   `yaml:"webhookUrl"`
	} `yaml:"discord"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		ChatID  int64  `yaml:"chatId"`
		Token   string `yaml:"token"`
	} `yaml:"telegram"`
	Ngrok struct {
		Enabled       bool   `yaml:"enabled"`
		SendURL       bool   `yaml:"sendUrl"`
		Authtoken     string `yaml:"authtoken"`
		Region        string `yaml:"region"`
		Domain        string `yaml:"domain"`
		BasicAuthUser string `yaml:"basicAuthUser"`
		BasicAuthPass string `yaml:"basicAuthPass"`
	} `yaml:"ngrok"`
	LatencyMonitor struct {
		Enabled          bool `yaml:"enabled"`
		ThresholdMs      int  `yaml:"thresholdMs"`
		SustainedSeconds int  `yaml:"sustainedSeconds"`
	} `yaml:"latencyMonitor"`
}

// ProfileCfg configures one supervised connection, loaded from
// config/<profile>/config.yaml. A copy is taken at supervisor start, so edits
// only apply on the next start.
type ProfileCfg struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Identity struct {
		Base string `yaml:"base"`
	} `yaml:"identity"`

	Reconnect struct {
		BanDelaySeconds         int  `yaml:"banDelaySeconds"`
		DuplicateDelaySeconds   int  `yaml:"duplicateDelaySeconds"`
		ThrottleBaseSeconds     int  `yaml:"throttleBaseSeconds"`
		ThrottleCapSeconds      int  `yaml:"throttleCapSeconds"`
		ThrottleCooldownAfter   int  `yaml:"throttleCooldownAfter"`
		ThrottleCooldownSeconds int  `yaml:"throttleCooldownSeconds"`
		UnknownStepSeconds      int  `yaml:"unknownStepSeconds"`
		UnknownCapSeconds       int  `yaml:"unknownCapSeconds"`
		ProbeBeforeConnect      bool `yaml:"probeBeforeConnect"`
		ProbeMaxWaitSeconds     int  `yaml:"probeMaxWaitSeconds"`
	} `yaml:"reconnect"`

	Evasion struct {
		Enabled               bool     `yaml:"enabled"`
		FriendlyPrefixes      []string `yaml:"friendlyPrefixes"`
		SlowScanSeconds       int      `yaml:"slowScanSeconds"`
		FastScanMs            int      `yaml:"fastScanMs"`
		ReturnPollSeconds     int      `yaml:"returnPollSeconds"`
		DwellMinutes          int      `yaml:"dwellMinutes"`
		MaxReturnAttempts     int      `yaml:"maxReturnAttempts"`
		ReturnCooldownSeconds int      `yaml:"returnCooldownSeconds"`
	} `yaml:"evasion"`

	Activity struct {
		Enabled             bool `yaml:"enabled"`
		MeanIntervalSeconds int  `yaml:"meanIntervalSeconds"`
	} `yaml:"activity"`

	Scheduler struct {
		Enabled         bool   `yaml:"enabled"`
		SimpleStartTime string `yaml:"simpleStartTime,omitempty"`
		SimpleStopTime  string `yaml:"simpleStopTime,omitempty"`
		VarianceMin     int    `yaml:"varianceMin,omitempty"`
	} `yaml:"scheduler"`

	ConfigFolderName string `yaml:"-"`
}

// Address returns the host:port dial string for the profile's server.
func (c *ProfileCfg) Address() string {
	port := c.Server.Port
	if port == 0 {
		port = 25565
	}
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(port))
}

func GetProfile(name string) (*ProfileCfg, bool) {
	cfgMux.RLock()
	defer cfgMux.RUnlock()
	cfg, exists := Profiles[name]
	return cfg, exists
}

func GetProfiles() map[string]*ProfileCfg {
	cfgMux.RLock()
	defer cfgMux.RUnlock()
	out := make(map[string]*ProfileCfg, len(Profiles))
	for k, v := range Profiles {
		out[k] = v
	}
	return out
}

func Load() error {
	cfgMux.Lock()
	defer cfgMux.Unlock()
	Profiles = make(map[string]*ProfileCfg)

	mainPath := getAbsPath("config/minelurk.yaml")
	r, err := os.Open(mainPath)
	if err != nil {
		return fmt.Errorf("error loading minelurk.yaml: %w", err)
	}
	defer r.Close()

	d := yaml.NewDecoder(r)
	if err = d.Decode(&Minelurk); err != nil {
		return fmt.Errorf("error reading config %s: %w", mainPath, err)
	}
	if Minelurk != nil {
		sanitizeDiscordConfig(Minelurk)
	}

	configDir := getAbsPath("config")
	entries, err := os.ReadDir(configDir)
	if err != nil {
		return fmt.Errorf("error reading config directory %s: %w", configDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		profileCfg := ProfileCfg{}

		profilePath := getAbsPath(filepath.Join("config", entry.Name(), "config.yaml"))
		r, err = os.Open(profilePath)
		if err != nil {
			return fmt.Errorf("error loading config.yaml: %w", err)
		}

		d := yaml.NewDecoder(r)
		if err = d.Decode(&profileCfg); err != nil {
			_ = r.Close()
			return fmt.Errorf("error reading %s profile config: %w", profilePath, err)
		}
		_ = r.Close()

		profileCfg.ConfigFolderName = entry.Name()
		profileCfg.Validate()
		Profiles[entry.Name()] = &profileCfg
	}

	return nil
}

// Validate fills in defaults for anything the profile left at zero.
func (c *ProfileCfg) Validate() {
	r := &c.Reconnect
	if r.BanDelaySeconds <= 0 {
		r.BanDelaySeconds = 1
	}
	if r.DuplicateDelaySeconds <= 0 {
		r.DuplicateDelaySeconds = 3
	}
	if r.ThrottleBaseSeconds <= 0 {
		r.ThrottleBaseSeconds = 5
	}
	if r.ThrottleCapSeconds <= 0 {
		r.ThrottleCapSeconds = 60
	}
	if r.ThrottleCooldownAfter <= 0 {
		r.ThrottleCooldownAfter = 5
	}
	if r.ThrottleCooldownSeconds <= 0 {
		r.ThrottleCooldownSeconds = 300
	}
	if r.UnknownStepSeconds <= 0 {
		r.UnknownStepSeconds = 5
	}
	if r.UnknownCapSeconds <= 0 {
		r.UnknownCapSeconds = 60
	}

	e := &c.Evasion
	if e.SlowScanSeconds <= 0 {
		e.SlowScanSeconds = 60
	}
	if e.FastScanMs < 500 {
		e.FastScanMs = 750
	}
	if e.FastScanMs > 1000 {
		e.FastScanMs = 1000
	}
	if e.ReturnPollSeconds <= 0 {
		e.ReturnPollSeconds = 2
	}
	if e.DwellMinutes <= 0 {
		e.DwellMinutes = 5
	}
	if e.MaxReturnAttempts <= 0 {
		e.MaxReturnAttempts = 300
	}
	if e.ReturnCooldownSeconds <= 0 {
		e.ReturnCooldownSeconds = 10
	}

	if c.Activity.MeanIntervalSeconds <= 0 {
		c.Activity.MeanIntervalSeconds = 45
	}
	if c.Identity.Base == "" {
		c.Identity.Base = "Lurker"
	}
}

func sanitizeDiscordConfig(cfg *MinelurkCfg) {
	if !cfg.Discord.Enabled {
		return
	}
	useWebhook := cfg.Discord.UseWebhook
	webhookURL := strings.TrimSpace(cfg.Discord.WebhookURL)
	token := strings.TrimSpace(cfg.Discord.Token)
	channelID := strings.TrimSpace(cfg.Discord.ChannelID)

	if (useWebhook && webhookURL == "") || (!useWebhook && (token == "" || channelID == "")) {
		cfg.Discord.Enabled = false
	}
}

// CreateFromTemplate bootstraps a new profile directory by copying
// config/template, then reloads everything so the new profile is visible.
func CreateFromTemplate(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}

	if _, err := os.Stat("config/" + name); !os.IsNotExist(err) {
		return errors.New("profile with that name already exists")
	}

	err := cp.Copy("config/template", "config/"+name)
	if err != nil {
		return fmt.Errorf("error copying template: %w", err)
	}

	return Load()
}

func SaveMinelurkConfig(config *MinelurkCfg) error {
	if config == nil {
		return errors.New("minelurk config is nil")
	}
	if config.Discord.Enabled {
		sanitizeDiscordConfig(config)
	}
	text, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshalling minelurk config: %w", err)
	}
	if err := os.WriteFile("config/minelurk.yaml", text, 0644); err != nil {
		return fmt.Errorf("error writing minelurk config: %w", err)
	}
	return Load()
}

func SaveProfileConfig(name string, config *ProfileCfg) error {
	filePath := filepath.Join("config", name, "config.yaml")
	config.Validate()
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, d, 0644); err != nil {
		return fmt.Errorf("error writing profile config: %w", err)
	}

	return Load()
}

func getAbsPath(relPath string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return relPath
	}
	return filepath.Join(cwd, relPath)
}
