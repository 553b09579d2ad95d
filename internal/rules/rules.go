// Package rules assigns categories to imported transactions from a
// user-maintained YAML rule file.
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// DefaultPath is the rule file location relative to the repo root.
const DefaultPath = "rules/categorization-rules.yaml"

// Kind says what a rule matches on.
type Kind string

const (
	KindMerchant    Kind = "merchant"     // substring of the merchant, or the description when there is none
	KindDescription Kind = "description"  // case-insensitive regular expression on the description
	KindKeyword     Kind = "keyword"      // substring of the description or merchant
	KindAmountRange Kind = "amount_range" // amount within [min, max]
)

// Rule maps matching transactions to a category. Min and Max further
// restrict any kind of rule; Type, when set, restricts the direction.
type Rule struct {
	Name     string
	Category string
	Kind     Kind
	Pattern  string
	Min      *decimal.Decimal
	Max      *decimal.Decimal
	Type     model.TransactionType
	Priority int
	Disabled bool

	re *regexp.Regexp
}

// yamlRule is the on-disk form. Amounts are strings so they keep their
// exact decimal value.
type yamlRule struct {
	Name     string `yaml:"name,omitempty"`
	Category string `yaml:"category"`
	Kind     Kind   `yaml:"kind"`
	Pattern  string `yaml:"pattern,omitempty"`
	Min      string `yaml:"min_amount,omitempty"`
	Max      string `yaml:"max_amount,omitempty"`
	Type     string `yaml:"type,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

type ruleFile struct {
	Rules []yamlRule `yaml:"rules"`
}

// Set is an ordered rule list. The zero value matches nothing.
type Set struct {
	rules []Rule
}

// New validates rules and orders them by descending priority. Rules with
// equal priority keep their given order.
func New(rules []Rule) (*Set, error) {
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if err := r.compile(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, r.label(), err)
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return &Set{rules: out}, nil
}

// Parse reads a YAML rule document.
func Parse(data []byte) (*Set, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	rules := make([]Rule, 0, len(f.Rules))
	for i, yr := range f.Rules {
		r := Rule{
			Name:     yr.Name,
			Category: yr.Category,
			Kind:     yr.Kind,
			Pattern:  yr.Pattern,
			Type:     model.TransactionType(yr.Type),
			Priority: yr.Priority,
			Disabled: yr.Disabled,
		}
		var err error
		if r.Min, err = parseBound(yr.Min); err != nil {
			return nil, fmt.Errorf("rule %d min_amount: %w", i+1, err)
		}
		if r.Max, err = parseBound(yr.Max); err != nil {
			return nil, fmt.Errorf("rule %d max_amount: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return New(rules)
}

// Load reads the rule file at path. A missing file yields an empty set.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Set{}, nil
		}
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	return Parse(data)
}

// Save writes rules to path in the format Load reads.
func Save(path string, rules []Rule) error {
	f := ruleFile{Rules: make([]yamlRule, 0, len(rules))}
	for _, r := range rules {
		yr := yamlRule{
			Name:     r.Name,
			Category: r.Category,
			Kind:     r.Kind,
			Pattern:  r.Pattern,
			Type:     string(r.Type),
			Priority: r.Priority,
			Disabled: r.Disabled,
		}
		if r.Min != nil {
			yr.Min = r.Min.String()
		}
		if r.Max != nil {
			yr.Max = r.Max.String()
		}
		f.Rules = append(f.Rules, yr)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}

// Len returns the number of rules, including disabled ones.
func (s *Set) Len() int { return len(s.rules) }

// Rules returns the rules in evaluation order.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Categorize returns the category of the first enabled rule that matches
// txn, or "".
func (s *Set) Categorize(txn model.Transaction) string {
	if s == nil {
		return ""
	}
	for i := range s.rules {
		if r := &s.rules[i]; !r.Disabled && r.Matches(txn) {
			return r.Category
		}
	}
	return ""
}

// Matches reports whether the rule applies to txn, ignoring Disabled.
func (r *Rule) Matches(txn model.Transaction) bool {
	if r.Type != "" && r.Type != txn.Type {
		return false
	}
	if r.Min != nil && txn.Amount.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && txn.Amount.GreaterThan(*r.Max) {
		return false
	}

	pattern := strings.ToLower(r.Pattern)
	switch r.Kind {
	case KindMerchant:
		target := txn.Merchant
		if target == "" {
			target = txn.Description
		}
		return strings.Contains(strings.ToLower(target), pattern)
	case KindDescription:
		return r.re.MatchString(txn.Description)
	case KindKeyword:
		return strings.Contains(strings.ToLower(txn.Description), pattern) ||
			strings.Contains(strings.ToLower(txn.Merchant), pattern)
	case KindAmountRange:
		return true
	}
	return false
}

func (r *Rule) compile() error {
	if strings.TrimSpace(r.Category) == "" {
		return errors.New("category is required")
	}
	if r.Type != "" && !r.Type.Valid() {
		return fmt.Errorf("unknown type %q", r.Type)
	}
	if r.Min != nil && r.Max != nil && r.Min.GreaterThan(*r.Max) {
		return errors.New("min_amount is greater than max_amount")
	}
	switch r.Kind {
	case KindMerchant, KindKeyword:
		if strings.TrimSpace(r.Pattern) == "" {
			return errors.New("pattern is required")
		}
	case KindDescription:
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return fmt.Errorf("compiling pattern: %w", err)
		}
		r.re = re
	case KindAmountRange:
		if r.Min == nil && r.Max == nil {
			return errors.New("amount_range needs min_amount or max_amount")
		}
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	return nil
}

func (r *Rule) label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Category
}

func parseBound(s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func bound(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// Defaults is the starter rule set written by `fintrack init`.
func Defaults() []Rule {
	return []Rule{
		{Name: "payroll", Category: "Salary", Kind: KindDescription, Pattern: `payroll|direct dep`, Type: model.TypeIncome, Priority: 100},
		{Name: "card payment", Category: "Credit Card Payment", Kind: KindKeyword, Pattern: "payment thank you", Priority: 90},
		{Name: "groceries", Category: "Groceries", Kind: KindDescription, Pattern: `loblaws|metro|sobeys|no frills|costco`, Type: model.TypeExpense, Priority: 50},
		{Name: "coffee", Category: "Dining Out", Kind: KindDescription, Pattern: `tim hortons|starbucks`, Type: model.TypeExpense, Priority: 50},
		{Name: "phone", Category: "Phone/Internet", Kind: KindDescription, Pattern: `rogers|bell canada|telus`, Type: model.TypeExpense, Priority: 50},
		{Name: "subscriptions", Category: "Subscriptions", Kind: KindDescription, Pattern: `netflix|spotify|github`, Type: model.TypeExpense, Priority: 40},
		{Name: "small purchases", Category: "Miscellaneous", Kind: KindAmountRange, Max: bound("5.00"), Type: model.TypeExpense, Priority: 1},
	}
}
