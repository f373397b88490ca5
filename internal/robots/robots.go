// Package robots parses robots.txt files. The crawler uses the result two
// ways: optional politeness enforcement, and reconnaissance about how the
// site is organized.
package robots

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RobotsTxt represents a parsed robots.txt file.
type RobotsTxt struct {
	rules map[string]*agentRules

	// Sitemap: directives in file order
	Sitemaps []string
}

type agentRules struct {
	allow      []string
	disallow   []string
	crawlDelay time.Duration

	allowPatterns    []*regexp.Regexp
	disallowPatterns []*regexp.Regexp
}

// Parse parses robots.txt content. It never fails; malformed lines are
// skipped.
func Parse(content string) *RobotsTxt {
	robots := &RobotsTxt{rules: make(map[string]*agentRules)}

	scanner := bufio.NewScanner(strings.NewReader(content))
	var currentAgents []string
	lastWasAgent := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "#"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		directive := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch directive {
		case "user-agent":
			agent := strings.ToLower(value)
			if lastWasAgent {
				currentAgents = append(currentAgents, agent)
			} else {
				currentAgents = []string{agent}
			}
			if _, exists := robots.rules[agent]; !exists {
				robots.rules[agent] = &agentRules{}
			}
			lastWasAgent = true
			continue

		case "disallow":
			for _, agent := range currentAgents {
				if rules := robots.rules[agent]; rules != nil {
					rules.disallow = append(rules.disallow, value)
					rules.disallowPatterns = append(rules.disallowPatterns, compilePattern(value))
				}
			}

		case "allow":
			for _, agent := range currentAgents {
				if rules := robots.rules[agent]; rules != nil {
					rules.allow = append(rules.allow, value)
					rules.allowPatterns = append(rules.allowPatterns, compilePattern(value))
				}
			}

		case "crawl-delay":
			if delay, err := strconv.ParseFloat(value, 64); err == nil {
				for _, agent := range currentAgents {
					if rules := robots.rules[agent]; rules != nil {
						rules.crawlDelay = time.Duration(delay * float64(time.Second))
					}
				}
			}

		case "sitemap":
			robots.Sitemaps = append(robots.Sitemaps, value)
		}
		lastWasAgent = false
	}

	return robots
}

// IsAllowed checks whether a path is allowed for a user-agent. With both
// an allow and a disallow match, the longer (more specific) rule wins.
func (r *RobotsTxt) IsAllowed(userAgent, path string) bool {
	rules := r.rulesFor(userAgent)
	if rules == nil {
		return true
	}
	if path == "" {
		path = "/"
	}

	allowMatch := bestMatch(rules.allow, rules.allowPatterns, path)
	disallowMatch := bestMatch(rules.disallow, rules.disallowPatterns, path)

	if disallowMatch == "" {
		return true
	}
	if allowMatch == "" {
		return false
	}
	return len(allowMatch) >= len(disallowMatch)
}

// CrawlDelay returns the crawl delay declared for a user-agent, zero when
// none is set.
func (r *RobotsTxt) CrawlDelay(userAgent string) time.Duration {
	rules := r.rulesFor(userAgent)
	if rules == nil {
		return 0
	}
	return rules.crawlDelay
}

// DisallowedPaths returns the disallow rules for a user-agent, falling
// back to the wildcard agent.
func (r *RobotsTxt) DisallowedPaths(userAgent string) []string {
	rules := r.rulesFor(userAgent)
	if rules == nil {
		return nil
	}
	out := make([]string, len(rules.disallow))
	copy(out, rules.disallow)
	return out
}

func (r *RobotsTxt) rulesFor(userAgent string) *agentRules {
	userAgent = strings.ToLower(userAgent)
	if rules, exists := r.rules[userAgent]; exists {
		return rules
	}
	for agent, rules := range r.rules {
		if agent != "*" && strings.Contains(userAgent, agent) {
			return rules
		}
	}
	return r.rules["*"]
}

func bestMatch(patterns []string, compiled []*regexp.Regexp, path string) string {
	var best string
	for i, pattern := range patterns {
		if pattern == "" {
			continue
		}
		var matched bool
		if i < len(compiled) && compiled[i] != nil {
			matched = compiled[i].MatchString(path)
		} else {
			matched = strings.HasPrefix(path, pattern)
		}
		if matched && len(pattern) > len(best) {
			best = pattern
		}
	}
	return best
}

// compilePattern converts a robots.txt pattern (with * and $) to a regex
// anchored at the start of the path.
func compilePattern(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `.*`)
	if strings.HasSuffix(escaped, `\$`) {
		escaped = escaped[:len(escaped)-2] + "$"
	}
	re, err := regexp.Compile("^" + escaped)
	if err != nil {
		return nil
	}
	return re
}
