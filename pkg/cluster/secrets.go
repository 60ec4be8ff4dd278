package cluster

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/walteh/envmirror/pkg/manifest"
)

// ErrNoSecretKey means no usable key could be found in the git credential secret
var ErrNoSecretKey = manifest.ErrNoSecretKey

// 🔑 SecretKeys picks the key of the git credential secret a deployment should reference
type SecretKeys struct {
	client    kubernetes.Interface
	name      string
	preferred []string
}

// NewSecretKeys resolves keys of the secret called name, trying preferred keys in order
func NewSecretKeys(client kubernetes.Interface, name string, preferred []string) *SecretKeys {
	return &SecretKeys{client: client, name: name, preferred: preferred}
}

// ResolveSecretKeyName returns the first preferred key present in the secret,
// else its alphabetically first key
func (s *SecretKeys) ResolveSecretKeyName(ctx context.Context, namespace string) (string, error) {
	secret, err := s.client.CoreV1().Secrets(namespace).Get(ctx, s.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", errors.Errorf("%w: secret %s/%s does not exist", ErrNoSecretKey, namespace, s.name)
	}
	if err != nil {
		return "", errors.Errorf("reading secret %s/%s: %w", namespace, s.name, err)
	}

	keys := make([]string, 0, len(secret.Data)+len(secret.StringData))
	present := map[string]bool{}
	for k := range secret.Data {
		if !present[k] {
			keys = append(keys, k)
			present[k] = true
		}
	}
	for k := range secret.StringData {
		if !present[k] {
			keys = append(keys, k)
			present[k] = true
		}
	}
	if len(keys) == 0 {
		return "", errors.Errorf("%w: secret %s/%s is empty", ErrNoSecretKey, namespace, s.name)
	}

	for _, k := range s.preferred {
		if present[k] {
			return k, nil
		}
	}

	sort.Strings(keys)
	zerolog.Ctx(ctx).Debug().Strs("keys", keys).Str("secret", s.name).Msg("no preferred secret key, using first key")
	return keys[0], nil
}

func isNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}
