package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryRule describes one category in the rule table. Order matters:
// ties in keyword scoring and the regex fallback are resolved by the first
// category in declaration order, so RuleSet keeps rules as an ordered list.
type CategoryRule struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	Patterns    []string `yaml:"patterns"` // regex fallbacks, tried after keywords and bands
}

// AmountBand maps an amount range to a category. Min is inclusive, Max is
// exclusive; a zero Max means unbounded.
type AmountBand struct {
	Category string  `yaml:"category"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
}

// RuleSet is the complete categorization rule table.
type RuleSet struct {
	Categories []CategoryRule `yaml:"categories"`
	Bands      []AmountBand   `yaml:"bands"`
}

// defaultRulesYAML is the built-in rule table, mirroring the category
// taxonomy the dashboard expects.
const defaultRulesYAML = `
categories:
  - name: payment
    description: Merchant and purchase payments
    keywords: [pay, purchase, buy, shop, merchant]
    patterns: ['pay\s+for', 'purchase', 'bought?', 'merchant', 'shop']
  - name: transfer
    description: Person-to-person money movement
    keywords: [send, transfer, remit, move]
    patterns: ['send\s+money', 'transfer\s+to', 'sent\s+\$?\d+', 'received\s+from']
  - name: deposit
    description: Money added to the wallet
    keywords: [deposit, add, top up, load, credit]
    patterns: ['deposit', 'add\s+money', 'cash\s+in', 'load']
  - name: withdrawal
    description: Money taken out of the wallet
    keywords: [withdraw, cash out, debit, subtract]
    patterns: ['withdraw', 'cash\s+out', 'atm']
  - name: airtime
    description: Airtime and data bundle purchases
    keywords: [airtime, minutes, data, bundle, recharge]
    patterns: ['\d+mb', 'bundle', 'min(ute)?s?\s*\d+', 'recharge', 'top\s*up']
  - name: other
    description: Fees, charges, and everything uncategorized
    keywords: [fee, charge, commission, tax]
bands:
  - {category: airtime, max: 500}
  - {category: transfer, min: 10000}
  - {category: payment, min: 1000, max: 5000}
`

// DefaultRules returns the built-in rule table.
func DefaultRules() RuleSet {
	rs, err := ParseRules([]byte(defaultRulesYAML))
	if err != nil {
		// The built-in table is a compile-time constant; failing to parse it
		// is a programming error.
		panic(fmt.Sprintf("built-in rule table invalid: %v", err))
	}
	return rs
}

// DefaultRulesYAML returns the built-in rule table in its YAML form, suitable
// for seeding an editable rules file.
func DefaultRulesYAML() []byte {
	return []byte(strings.TrimLeft(defaultRulesYAML, "\n"))
}

// ParseRules decodes a YAML rule table.
func ParseRules(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("parsing rules: %w", err)
	}
	if len(rs.Categories) == 0 {
		return RuleSet{}, fmt.Errorf("parsing rules: no categories defined")
	}
	return rs, nil
}

// LoadRules reads a rule table from path, or the built-in table when path is
// empty.
func LoadRules(path string) (RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("reading rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// CategoryNames returns the category labels in declaration order.
func (rs RuleSet) CategoryNames() []string {
	names := make([]string, len(rs.Categories))
	for i, c := range rs.Categories {
		names[i] = c.Name
	}
	return names
}
