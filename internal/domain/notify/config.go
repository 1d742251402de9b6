package notify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Strob0t/ticketslack/internal/domain"
)

// Setting keys as stored in the plugin configuration table.
const (
	KeyWebhookURL    = "slack-webhook-url"
	KeySubjectIgnore = "slack-regex-subject-ignore"
	KeyStaleColor    = "slack-update-ticket-stale-color"
	KeyTemplate      = "message-template"
	KeyFooter        = "slack-footer"
	KeyFooterIcon    = "slack-footer-icon"

	keyRulePrefix = "slack-update-ticket-"
)

// Default values applied when a key is absent from the store.
const (
	DefaultOpenedColor = "#36a64f"
	DefaultReplyColor  = "#aa00ff"
	DefaultStaleColor  = "#b21111"
	DefaultFooter      = "via osTicket Slack Plugin"
	DefaultFooterIcon  = "https://platform.slack-edge.com/img/default_application_icon.png"
	DefaultTemplate    = "%{ticket.name.full} (%{ticket.email}) in *%{ticket.dept}* _%{ticket.topic}_\n\n```%{slack_safe_message}```"
)

// InvalidRegexMessage is shown to the operator when the ignore pattern does not compile.
const InvalidRegexMessage = `Your regex was invalid, try something like "spam", it will become: "/spam/i" when we use it.`

// EnabledKey returns the setting key holding the enable flag for k.
func EnabledKey(k Kind) string { return keyRulePrefix + string(k) }

// ColorKey returns the setting key holding the color for k.
func ColorKey(k Kind) string { return keyRulePrefix + string(k) + "-color" }

// Rule is the per-kind configuration.
type Rule struct {
	Enabled bool   `json:"enabled"`
	Color   string `json:"color"`
}

// Config is an immutable snapshot of the plugin settings taken at dispatch time.
type Config struct {
	WebhookURL    string        `json:"webhook_url"`
	SubjectIgnore string        `json:"subject_ignore"`
	Rules         map[Kind]Rule `json:"rules"`
	OverdueColor  string        `json:"overdue_color"`
	Template      string        `json:"template"`
	Footer        string        `json:"footer"`
	FooterIcon    string        `json:"footer_icon"`

	// BaseURL is the help-desk root, always ending in "/".
	BaseURL string `json:"base_url"`
}

// Rule returns the rule for k. Unknown kinds yield the zero (disabled) rule.
func (c Config) Rule(k Kind) Rule {
	return c.Rules[k]
}

// ConfigFromValues builds a snapshot from raw key-value settings.
// Missing keys fall back to the plugin defaults.
func ConfigFromValues(values map[string]string, baseURL string) Config {
	get := func(key, def string) string {
		if v, ok := values[key]; ok && v != "" {
			return v
		}
		return def
	}

	rules := make(map[Kind]Rule, len(RuleKinds))
	for _, k := range RuleKinds {
		def := DefaultReplyColor
		if k == KindOpened {
			def = DefaultOpenedColor
		}
		rules[k] = Rule{
			Enabled: parseFlag(values[EnabledKey(k)]),
			Color:   get(ColorKey(k), def),
		}
	}

	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return Config{
		WebhookURL:    strings.TrimSpace(values[KeyWebhookURL]),
		SubjectIgnore: values[KeySubjectIgnore],
		Rules:         rules,
		OverdueColor:  get(KeyStaleColor, DefaultStaleColor),
		Template:      get(KeyTemplate, DefaultTemplate),
		Footer:        get(KeyFooter, DefaultFooter),
		FooterIcon:    get(KeyFooterIcon, DefaultFooterIcon),
		BaseURL:       baseURL,
	}
}

// KnownKeys lists every setting key the plugin reads.
func KnownKeys() []string {
	keys := []string{KeyWebhookURL, KeySubjectIgnore, KeyStaleColor, KeyTemplate, KeyFooter, KeyFooterIcon}
	for _, k := range RuleKinds {
		keys = append(keys, EnabledKey(k), ColorKey(k))
	}
	return keys
}

// parseFlag accepts the boolean spellings the host config store produces.
func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes":
		return true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// CompileSubjectIgnore compiles an ignore pattern the way the plugin applies
// it: implicitly delimited and always case-insensitive.
func CompileSubjectIgnore(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile subject ignore %q: %w", pattern, err)
	}
	return re, nil
}

// ValidateValues is the pre-save hook for plugin settings. It rejects an
// ignore pattern that does not compile.
func ValidateValues(values map[string]string) error {
	if p := values[KeySubjectIgnore]; p != "" {
		if _, err := CompileSubjectIgnore(p); err != nil {
			return fmt.Errorf("%w: %s", domain.ErrValidation, InvalidRegexMessage)
		}
	}
	return nil
}
