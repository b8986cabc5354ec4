package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type StructuredJSONConfig struct {
	App struct {
		DataDir      string `json:"data_dir"`
		RegistryFile string `json:"registry_file"`
	} `json:"app,omitempty"`

	Device struct {
		Token string `json:"token"`
		Type  string `json:"type"`
	} `json:"device,omitempty"`

	Remote struct {
		URL         string   `json:"url"`
		DialTimeout Duration `json:"dial_timeout"`
	} `json:"remote,omitempty"`

	Workers struct {
		TickInterval Duration `json:"tick_interval"`
		ReaskAfter   Duration `json:"reask_after"`
	} `json:"workers,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			DataDir:      jsonCfg.App.DataDir,
			RegistryFile: jsonCfg.App.RegistryFile,
		},
		Device: Device{
			Token: jsonCfg.Device.Token,
			Type:  jsonCfg.Device.Type,
		},
		Remote: Remote{
			URL:         jsonCfg.Remote.URL,
			DialTimeout: time.Duration(jsonCfg.Remote.DialTimeout),
		},
		Workers: Workers{
			TickInterval: time.Duration(jsonCfg.Workers.TickInterval),
			ReaskAfter:   time.Duration(jsonCfg.Workers.ReaskAfter),
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling
// from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
