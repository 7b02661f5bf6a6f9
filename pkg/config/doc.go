// Package config defines the node-level configuration for the
// replication core (specification §6.5) and a YAML loader with
// defaults, matching the teacher's config/state serialization
// conventions (gopkg.in/yaml.v3).
package config
