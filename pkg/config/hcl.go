// Copyright 2025 walteh LLC
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

package config

import (
	"context"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

type hclEnvironment struct {
	Namespace string `hcl:"namespace"`
	Owner     string `hcl:"owner"`
	Repo      string `hcl:"repo"`
	Branch    string `hcl:"branch,optional"`
}

type hclReplacement struct {
	Old    string `hcl:"old"`
	New    string `hcl:"new"`
	File   string `hcl:"file,optional"`
	Regexp bool   `hcl:"regexp,optional"`
}

type hclMapping struct {
	Namespace    string `hcl:"namespace,label"`
	DefaultHost  string `hcl:"default_host,optional"`
	VolatileHost string `hcl:"volatile_host,optional"`
	Mode         string `hcl:"mode,optional"`
}

type hclConfig struct {
	CacheDir string         `hcl:"cache_dir,optional"`
	Source   hclEnvironment `hcl:"source,block"`
	Target   hclEnvironment `hcl:"target,block"`
	Git      *struct {
		Provider    string `hcl:"provider,optional"`
		BaseURL     string `hcl:"base_url,optional"`
		APIURL      string `hcl:"api_url,optional"`
		Protocol    string `hcl:"protocol,optional"`
		AuthorName  string `hcl:"author_name,optional"`
		AuthorEmail string `hcl:"author_email,optional"`
	} `hcl:"git,block"`
	Transform *struct {
		Patterns         []string            `hcl:"patterns,optional"`
		Workers          int                 `hcl:"workers,optional"`
		Dispatch         map[string][]string `hcl:"dispatch,optional"`
		DirectConnection bool                `hcl:"direct_connection,optional"`
		Replacements     []hclReplacement    `hcl:"replacement,block"`
	} `hcl:"transform,block"`
	Database *struct {
		Mappings []hclMapping `hcl:"mapping,block"`
	} `hcl:"database,block"`
	Verify *struct {
		RequiredFiles []string `hcl:"required_files,optional"`
	} `hcl:"verify,block"`
	Publish *struct {
		Policy string `hcl:"policy,optional"`
	} `hcl:"publish,block"`
	Manifest *struct {
		Group             string   `hcl:"group,optional"`
		Version           string   `hcl:"version,optional"`
		Resource          string   `hcl:"resource,optional"`
		Name              string   `hcl:"name,optional"`
		SecretName        string   `hcl:"secret_name,optional"`
		SecretKeys        []string `hcl:"secret_keys,optional"`
		LegacySecretKeys  []string `hcl:"legacy_secret_keys,optional"`
		FallbackSecretKey string   `hcl:"fallback_secret_key,optional"`
	} `hcl:"manifest,block"`
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Create evaluation context
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{
		CacheDir: hclCfg.CacheDir,
		Source:   Environment(hclCfg.Source),
		Target:   Environment(hclCfg.Target),
	}

	if g := hclCfg.Git; g != nil {
		cfg.Git = GitArgs{
			Provider:    g.Provider,
			BaseURL:     g.BaseURL,
			APIURL:      g.APIURL,
			Protocol:    g.Protocol,
			AuthorName:  g.AuthorName,
			AuthorEmail: g.AuthorEmail,
		}
	}

	if t := hclCfg.Transform; t != nil {
		cfg.Transform = TransformArgs{
			Patterns:         t.Patterns,
			Workers:          t.Workers,
			Dispatch:         t.Dispatch,
			DirectConnection: t.DirectConnection,
		}
		for _, r := range t.Replacements {
			cfg.Transform.Replacements = append(cfg.Transform.Replacements, Replacement(r))
		}
	}

	if d := hclCfg.Database; d != nil && len(d.Mappings) > 0 {
		cfg.Database.Mappings = map[string]DatabaseHost{}
		for _, m := range d.Mappings {
			cfg.Database.Mappings[m.Namespace] = DatabaseHost{
				DefaultHost:  m.DefaultHost,
				VolatileHost: m.VolatileHost,
				Mode:         m.Mode,
			}
		}
	}

	if v := hclCfg.Verify; v != nil {
		cfg.Verify.RequiredFiles = v.RequiredFiles
	}

	if pb := hclCfg.Publish; pb != nil {
		cfg.Publish.Policy = pb.Policy
	}

	if m := hclCfg.Manifest; m != nil {
		cfg.Manifest = ManifestArgs{
			Group:             m.Group,
			Version:           m.Version,
			Resource:          m.Resource,
			Name:              m.Name,
			SecretName:        m.SecretName,
			SecretKeys:        m.SecretKeys,
			LegacySecretKeys:  m.LegacySecretKeys,
			FallbackSecretKey: m.FallbackSecretKey,
		}
	}

	return cfg, nil
}
