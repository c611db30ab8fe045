package core

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	zlog "github.com/rs/zerolog/log"
)

// ContactsFileParser reads a flat list of phone numbers from a file, one per
// line, for bulk submission to a contacts-sync request.
type ContactsFileParser struct {
	defaultCountryPrefix string
}

// NewContactsFileParser creates a parser that prefixes bare local numbers
// (no leading country code) with defaultCountryPrefix when non-empty.
func NewContactsFileParser(defaultCountryPrefix string) *ContactsFileParser {
	return &ContactsFileParser{defaultCountryPrefix: defaultCountryPrefix}
}

// ParseNumberLine normalizes one line into an MSISDN, or returns "" for
// blank lines and comments.
func (p *ContactsFileParser) ParseNumberLine(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil
	}
	number := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, line)
	if number == "" {
		return "", fmt.Errorf("contacts file: no digits in line %q", line)
	}
	if p.defaultCountryPrefix != "" && !strings.HasPrefix(number, p.defaultCountryPrefix) {
		number = p.defaultCountryPrefix + number
	}
	return number, nil
}

// ParseNumbersFile reads every line of filePath into a de-duplicated,
// normalized MSISDN list.
func (p *ContactsFileParser) ParseNumbersFile(filePath string) ([]string, error) {
	zlog.Debug().Str("file", filePath).Msg("loading contacts-sync numbers from file")

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("contacts file: %w", err)
	}
	defer file.Close()

	seen := make(map[string]struct{})
	var numbers []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		number, err := p.ParseNumberLine(scanner.Text())
		if err != nil {
			zlog.Warn().Int("line", lineNum).Err(err).Msg("skipping malformed contacts-file line")
			continue
		}
		if number == "" {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}
		numbers = append(numbers, number)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("contacts file: %w", err)
	}
	return numbers, nil
}
