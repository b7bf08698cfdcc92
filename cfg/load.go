// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Load resolves a Config from flagSet plus, if configFile is non-empty, a
// YAML file whose keys follow the same dotted structure BindFlags
// registers (cache.type, metadata.shard-count, and so on). Flags take
// precedence over the file; the file takes precedence over defaults.
//
// Callers that take flags call BindFlags(flagSet) and then
// flagSet.Parse(os.Args[1:]) before calling Load; if flagSet has no flags
// registered yet, Load registers them itself (all at their defaults).
func Load(flagSet *pflag.FlagSet, configFile string) (Config, error) {
	if flagSet.Lookup("cache.type") == nil {
		if err := BindFlags(flagSet); err != nil {
			return Config{}, fmt.Errorf("binding flags: %w", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	c := DefaultConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	return c, nil
}
