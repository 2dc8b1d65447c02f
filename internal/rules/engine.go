package rules

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"log-sentinel/internal/model"

	"github.com/sirupsen/logrus"
)

// excerptLength is the number of message characters copied into an alert.
const excerptLength = 200

// EngineConfig tunes an Engine. The zero value is usable.
type EngineConfig struct {
	MaxTrackedKeys int
	Now            func() time.Time
}

type compiledRule struct {
	rule    model.DetectionRule
	pattern *regexp.Regexp
	context *regexp.Regexp
}

// Engine evaluates log records against an immutable, ordered rule set.
// Threshold state lives inside the engine; Evaluate is serialized so the
// engine may be shared, although the ingestion loop is its only caller.
type Engine struct {
	rules   []compiledRule
	tracker *thresholdTracker
	now     func() time.Time
	logger  *logrus.Logger
	mu      sync.Mutex
}

// NewEngine validates and compiles defs. Declaration order is preserved and
// decides the order of alerts returned by Evaluate.
func NewEngine(defs []model.DetectionRule, cfg EngineConfig, logger *logrus.Logger) (*Engine, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}

	compiled := make([]compiledRule, 0, len(defs))
	for _, def := range defs {
		cr, err := compile(def)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, cr)
		logger.Infof("Registered rule: %s (%s, severity %s)", def.ID, def.Name, def.Severity)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		rules:   compiled,
		tracker: newThresholdTracker(cfg.MaxTrackedKeys),
		now:     now,
		logger:  logger,
	}, nil
}

func compile(def model.DetectionRule) (compiledRule, error) {
	pattern, err := regexp.Compile("(?i)" + def.Pattern)
	if err != nil {
		return compiledRule{}, fmt.Errorf("rule %s: invalid pattern: %w", def.ID, err)
	}

	cr := compiledRule{rule: def, pattern: pattern}
	if def.ContextPattern != "" {
		cr.context, err = regexp.Compile("(?i)" + def.ContextPattern)
		if err != nil {
			return compiledRule{}, fmt.Errorf("rule %s: invalid context pattern: %w", def.ID, err)
		}
	}
	return cr, nil
}

// Rules returns the rule catalog in declaration order.
func (e *Engine) Rules() []model.DetectionRule {
	out := make([]model.DetectionRule, len(e.rules))
	for i := range e.rules {
		out[i] = e.rules[i].rule
	}
	return out
}

// Rule looks up a rule by id.
func (e *Engine) Rule(id string) (model.DetectionRule, bool) {
	for i := range e.rules {
		if e.rules[i].rule.ID == id {
			return e.rules[i].rule, true
		}
	}
	return model.DetectionRule{}, false
}

// TrackedKeys returns how many (rule, source) windows are held in memory.
func (e *Engine) TrackedKeys() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.keys()
}

// Evaluate runs every rule against rec and returns the alerts it produced,
// in rule declaration order. logID is the store id of rec.
//
// Threshold rules fire on every matching evaluation once the number of
// matches in the window reaches the threshold, not only on the crossing.
func (e *Engine) Evaluate(rec model.LogRecord, logID int64) []model.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	var alerts []model.Alert
	for i := range e.rules {
		cr := &e.rules[i]

		if cr.context != nil && !cr.context.MatchString(rec.Message) {
			continue
		}
		if !cr.pattern.MatchString(rec.Message) {
			continue
		}

		now := e.now()
		if cr.rule.HasThreshold() {
			key := trackerKey(cr.rule.ID, rec.SourceIP)
			n := e.tracker.observe(key, now, cr.rule.Window())
			if n < cr.rule.Threshold {
				e.logger.Debugf("[%s] %s: %d/%d matches in %ds window", cr.rule.ID, key, n, cr.rule.Threshold, cr.rule.WindowSeconds)
				continue
			}
		}

		alerts = append(alerts, newAlert(cr.rule, rec, logID, now))
	}

	return alerts
}

func newAlert(rule model.DetectionRule, rec model.LogRecord, logID int64, now time.Time) model.Alert {
	return model.Alert{
		Timestamp:   now,
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Severity:    rule.Severity,
		Message:     fmt.Sprintf("%s. Log: %s", rule.Description, excerpt(rec.Message, excerptLength)),
		SourceIP:    rec.SourceIP,
		MitreAttack: rule.MitreAttack,
		LogID:       logID,
	}
}

func excerpt(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
