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

// Package cluster talks to the Kubernetes API for the manifest stage: it
// resolves the git credential key, reads the live environment resource and
// applies generated manifests.
package cluster

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/envmirror/pkg/config"
)

// FieldManager names envmirror as the owner of applied fields
const FieldManager = "envmirror"

// 🔌 Clients bundles the typed and dynamic clients for one cluster
type Clients struct {
	Core    kubernetes.Interface
	Dynamic dynamic.Interface
}

// RESTConfig loads the in-cluster config, falling back to kubeconfig (an
// explicit path first, then KUBECONFIG and the default location)
func RESTConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, errors.Errorf("loading kubeconfig: %w", err)
	}
	return cfg, nil
}

// 🏭 NewClients builds clients from a REST config
func NewClients(cfg *rest.Config) (*Clients, error) {
	core, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Errorf("creating core client: %w", err)
	}
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Errorf("creating dynamic client: %w", err)
	}
	return &Clients{Core: core, Dynamic: dyn}, nil
}

// ResourceFromConfig returns the group/version/resource of the environment resource
func ResourceFromConfig(m config.ManifestArgs) schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: m.Group, Version: m.Version, Resource: m.Resource}
}
