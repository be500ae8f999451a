/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config holds the YAML-loadable settings for the otp-producer,
// otp-consumer and otp-produder binaries, read the same way
// sptp/client.ReadConfig loads its client.Config: defaults first, then a
// YAML file unmarshaled on top. The binaries' CLI flags select the file,
// log level and pprof address; no flag overrides a value from the file.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/esta-otp/otp/wire"
)

// PointConfig describes one point a Producer owns at startup.
type PointConfig struct {
	System   uint8  `yaml:"system"`
	Group    uint16 `yaml:"group"`
	Point    uint32 `yaml:"point"`
	Priority uint8  `yaml:"priority"`
	Name     string `yaml:"name"`
}

// Address converts the YAML fields into a wire.Address.
func (p PointConfig) Address() wire.Address {
	return wire.Address{System: wire.System(p.System), Group: wire.Group(p.Group), Point: wire.Point(p.Point)}
}

// ProducerConfig is otp-producer's full configuration.
type ProducerConfig struct {
	CID            string        `yaml:"cid"`
	Name           string        `yaml:"name"`
	Iface          string        `yaml:"iface"`
	MonitoringPort int           `yaml:"monitoring_port"`
	PrometheusPort int           `yaml:"prometheus_port"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	Points         []PointConfig `yaml:"points"`
}

// DefaultProducerConfig returns a ProducerConfig initialized with the
// same kind of sane defaults DefaultConfig gives sptp's client.Config.
func DefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Iface:          "eth0",
		MonitoringPort: 8890,
		PrometheusPort: 9109,
		SweepInterval:  time.Second,
	}
}

// ReadProducerConfig loads a ProducerConfig from a YAML file on top of
// DefaultProducerConfig.
func ReadProducerConfig(path string) (*ProducerConfig, error) {
	c := DefaultProducerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config from %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config from %q: %w", path, err)
	}
	return c, nil
}

// ConsumerConfig is otp-consumer's full configuration.
type ConsumerConfig struct {
	CID            string        `yaml:"cid"`
	Name           string        `yaml:"name"`
	Iface          string        `yaml:"iface"`
	MonitoringPort int           `yaml:"monitoring_port"`
	PrometheusPort int           `yaml:"prometheus_port"`
	Systems        []uint8       `yaml:"systems"`
	AdInterval     time.Duration `yaml:"advertisement_interval"`
}

// DefaultConsumerConfig returns a ConsumerConfig initialized with sane defaults.
func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Iface:          "eth0",
		MonitoringPort: 8891,
		PrometheusPort: 9110,
		AdInterval:     10 * time.Second,
	}
}

// ReadConsumerConfig loads a ConsumerConfig from a YAML file on top of
// DefaultConsumerConfig.
func ReadConsumerConfig(path string) (*ConsumerConfig, error) {
	c := DefaultConsumerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config from %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config from %q: %w", path, err)
	}
	return c, nil
}

// ProduderConfig is otp-produder's full configuration: a single process
// running both engine roles, so it carries both the Points a Producer
// owns and the Systems a Consumer monitors under one CID.
type ProduderConfig struct {
	CID            string        `yaml:"cid"`
	Name           string        `yaml:"name"`
	Iface          string        `yaml:"iface"`
	MonitoringPort int           `yaml:"monitoring_port"`
	PrometheusPort int           `yaml:"prometheus_port"`
	Points         []PointConfig `yaml:"points"`
	Systems        []uint8       `yaml:"systems"`
}

// DefaultProduderConfig returns a ProduderConfig initialized with sane defaults.
func DefaultProduderConfig() *ProduderConfig {
	return &ProduderConfig{
		Iface:          "eth0",
		MonitoringPort: 8892,
		PrometheusPort: 9111,
	}
}

// ReadProduderConfig loads a ProduderConfig from a YAML file on top of
// DefaultProduderConfig.
func ReadProduderConfig(path string) (*ProduderConfig, error) {
	c := DefaultProduderConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config from %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config from %q: %w", path, err)
	}
	return c, nil
}
