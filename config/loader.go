package config

import (
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadConfigFromFile decodes a TOML file over cfg and trims whitespace from
// all string fields. Duplicate keys keep their first occurrence and unknown
// keys are ignored; both are reported as warnings.
func LoadConfigFromFile(configPath string, cfg *Config) error {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	metadata, err := toml.Decode(string(content), cfg)
	if err != nil {
		if !strings.Contains(err.Error(), "has already been defined") {
			return enhanceConfigError(err)
		}
		log.Printf("WARNING: configuration file '%s' contains duplicate keys: %v", configPath, err)
		log.Printf("WARNING: only the first occurrence of each key will be used")

		cleaned, cleanErr := removeDuplicateKeysFromTOML(string(content))
		if cleanErr != nil {
			return enhanceConfigError(err)
		}
		metadata, err = toml.Decode(cleaned, cfg)
		if err != nil {
			return enhanceConfigError(err)
		}
	}

	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		log.Printf("WARNING: configuration file '%s' contains unknown keys that will be ignored:", configPath)
		for _, key := range undecoded {
			log.Printf("WARNING:   - %s", key)
		}
	}

	trimStringFields(reflect.ValueOf(cfg).Elem())
	return nil
}

// removeDuplicateKeysFromTOML comments out every key that was already set in
// the same table. Each [[array.table]] element starts a fresh key set.
func removeDuplicateKeysFromTOML(content string) (string, error) {
	lines := strings.Split(content, "\n")
	seen := make(map[string]int)
	result := make([]string, 0, len(lines))
	var section, lastArrayTable string

	for lineNum, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			result = append(result, line)
			continue

		case strings.HasPrefix(trimmed, "[[") && strings.HasSuffix(trimmed, "]]"):
			section = strings.TrimSpace(trimmed[2 : len(trimmed)-2])
			if section == lastArrayTable {
				for k := range seen {
					if strings.HasPrefix(k, section+".") {
						delete(seen, k)
					}
				}
			}
			lastArrayTable = section
			result = append(result, line)
			continue

		case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
			section = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			lastArrayTable = ""
			result = append(result, line)
			continue
		}

		if key, _, ok := strings.Cut(trimmed, "="); ok {
			fullKey := strings.TrimSpace(key)
			if section != "" {
				fullKey = section + "." + fullKey
			}
			if prev, dup := seen[fullKey]; dup {
				log.Printf("WARNING: duplicate key '%s' at line %d (first set at line %d), ignoring", fullKey, lineNum+1, prev+1)
				result = append(result, "# DUPLICATE IGNORED: "+line)
				continue
			}
			seen[fullKey] = lineNum
		}
		result = append(result, line)
	}

	return strings.Join(result, "\n"), nil
}

// enhanceConfigError adds a hint for the TOML mistakes people make most.
func enhanceConfigError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "has already been defined"):
		return fmt.Errorf("%w\n\nHINT: a key appears twice in the same section of your configuration file", err)
	case strings.Contains(msg, "expected value but found \"f\""),
		strings.Contains(msg, "expected value but found \"t\""):
		return fmt.Errorf("%w\n\nHINT: booleans must be written as 'true' or 'false' (lowercase, unquoted)", err)
	case strings.Contains(msg, "expected") || strings.Contains(msg, "invalid"):
		return fmt.Errorf("%w\n\nHINT: check quoting, brackets and section headers in your configuration file", err)
	}
	return err
}

// trimStringFields recursively trims whitespace from all string fields.
func trimStringFields(v reflect.Value) {
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.String:
		if v.CanSet() {
			v.SetString(strings.TrimSpace(v.String()))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			trimStringFields(v.Index(i))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if f := v.Field(i); f.CanSet() {
				trimStringFields(f)
			}
		}
	case reflect.Ptr:
		if !v.IsNil() {
			trimStringFields(v.Elem())
		}
	}
}
