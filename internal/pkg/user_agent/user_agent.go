package user_agent

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Unknown is reported for any field the rule tables could not determine.
const Unknown = "Unknown"

const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
)

type UserAgent struct {
	UserAgent string
	OS        string
	Browser   string
	Device    string
	Bot       bool
}

//go:embed database/regexes.yml
var rulesYAML []byte

type namedRule struct {
	Regex string `yaml:"regex"`
	Name  string `yaml:"name"`
}

type deviceRule struct {
	Regex string `yaml:"regex"`
	Type  string `yaml:"type"`
}

type ruleSet struct {
	Bots     []namedRule  `yaml:"bots"`
	Browsers []namedRule  `yaml:"browsers"`
	OSs      []namedRule  `yaml:"oss"`
	Devices  []deviceRule `yaml:"devices"`
}

type compiled struct {
	re    *pcre.Regexp
	label string
}

// Parser matches user agent strings against ordered, precompiled rule tables.
// It is safe for concurrent use.
type Parser struct {
	bots     []compiled
	browsers []compiled
	oss      []compiled
	devices  []compiled
}

// NewParser compiles the given YAML rule document.
func NewParser(doc []byte) (*Parser, error) {
	var rules ruleSet
	if err := yaml.Unmarshal(doc, &rules); err != nil {
		return nil, fmt.Errorf("parse user agent rules: %w", err)
	}

	p := &Parser{}
	var err error
	if p.bots, err = compileNamed("bots", rules.Bots); err != nil {
		return nil, err
	}
	if p.browsers, err = compileNamed("browsers", rules.Browsers); err != nil {
		return nil, err
	}
	if p.oss, err = compileNamed("oss", rules.OSs); err != nil {
		return nil, err
	}
	for i, d := range rules.Devices {
		re, err := pcre.Compile(d.Regex)
		if err != nil {
			return nil, fmt.Errorf("devices[%d] %q: %w", i, d.Regex, err)
		}
		p.devices = append(p.devices, compiled{re: re, label: d.Type})
	}
	return p, nil
}

func compileNamed(table string, rules []namedRule) ([]compiled, error) {
	out := make([]compiled, 0, len(rules))
	for i, r := range rules {
		re, err := pcre.Compile(r.Regex)
		if err != nil {
			return nil, fmt.Errorf("%s[%d] %q: %w", table, i, r.Regex, err)
		}
		out = append(out, compiled{re: re, label: r.Name})
	}
	return out, nil
}

func firstMatch(rules []compiled, ua string) string {
	for _, r := range rules {
		if r.re.MatchString(ua) {
			return r.label
		}
	}
	return ""
}

// Parse classifies ua. Blank or unmatched fields come back as Unknown and an
// unmatched device falls back to Desktop for anything that looks like a browser.
func (p *Parser) Parse(ua string) UserAgent {
	ua = strings.TrimSpace(ua)
	result := UserAgent{UserAgent: ua, OS: Unknown, Browser: Unknown, Device: Unknown}
	if ua == "" {
		return result
	}

	if bot := firstMatch(p.bots, ua); bot != "" {
		result.Browser = bot
		result.Device = DeviceBot
		result.Bot = true
		return result
	}

	if browser := firstMatch(p.browsers, ua); browser != "" {
		result.Browser = browser
	}
	if os := firstMatch(p.oss, ua); os != "" {
		result.OS = os
	}
	switch device := firstMatch(p.devices, ua); {
	case device != "":
		result.Device = device
	case result.Browser != Unknown || result.OS != Unknown:
		result.Device = DeviceDesktop
	}
	return result
}

var (
	defaultParser *Parser
	defaultErr    error
	once          sync.Once
)

func getParser() (*Parser, error) {
	once.Do(func() {
		defaultParser, defaultErr = NewParser(rulesYAML)
	})
	return defaultParser, defaultErr
}

// ParseUserAgent classifies ua with the embedded rule tables.
func ParseUserAgent(ua string) UserAgent {
	p, err := getParser()
	if err != nil {
		return UserAgent{UserAgent: ua, OS: Unknown, Browser: Unknown, Device: Unknown}
	}
	return p.Parse(ua)
}
