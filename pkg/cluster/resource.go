package cluster

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"sigs.k8s.io/yaml"
)

// 🌐 Environments reads and writes the named environment resource of a namespace
type Environments struct {
	client dynamic.Interface
	gvr    schema.GroupVersionResource
	name   string
}

// NewEnvironments creates a client for the resource called name of type gvr
func NewEnvironments(client dynamic.Interface, gvr schema.GroupVersionResource, name string) *Environments {
	return &Environments{client: client, gvr: gvr, name: name}
}

// server-populated metadata dropped from fetched templates
var serverFields = [][]string{
	{"metadata", "resourceVersion"},
	{"metadata", "uid"},
	{"metadata", "generation"},
	{"metadata", "creationTimestamp"},
	{"metadata", "managedFields"},
	{"metadata", "selfLink"},
	{"metadata", "annotations", "kubectl.kubernetes.io/last-applied-configuration"},
	{"status"},
}

// 📡 FetchLiveManifest returns the deployed resource as YAML without server-populated fields
func (e *Environments) FetchLiveManifest(ctx context.Context, namespace string) ([]byte, error) {
	obj, err := e.client.Resource(e.gvr).Namespace(namespace).Get(ctx, e.name, metav1.GetOptions{})
	if err != nil {
		return nil, errors.Errorf("getting %s %s/%s: %w", e.gvr.Resource, namespace, e.name, err)
	}

	for _, f := range serverFields {
		unstructured.RemoveNestedField(obj.Object, f...)
	}
	if len(obj.GetAnnotations()) == 0 {
		unstructured.RemoveNestedField(obj.Object, "metadata", "annotations")
	}

	out, err := yaml.Marshal(obj.Object)
	if err != nil {
		return nil, errors.Errorf("rendering %s: %w", e.name, err)
	}
	return out, nil
}

// 🚀 ApplyManifest server-side applies doc into namespace
func (e *Environments) ApplyManifest(ctx context.Context, namespace string, doc []byte) error {
	obj := &unstructured.Unstructured{}
	if err := yaml.Unmarshal(doc, &obj.Object); err != nil {
		return errors.Errorf("decoding manifest: %w", err)
	}
	if obj.GetName() == "" {
		obj.SetName(e.name)
	}
	obj.SetNamespace(namespace)

	body, err := obj.MarshalJSON()
	if err != nil {
		return errors.Errorf("encoding manifest: %w", err)
	}

	force := true
	_, err = e.client.Resource(e.gvr).Namespace(namespace).Patch(ctx, obj.GetName(), types.ApplyPatchType, body, metav1.PatchOptions{
		FieldManager: FieldManager,
		Force:        &force,
	})
	if err != nil {
		return errors.Errorf("applying %s %s/%s: %w", e.gvr.Resource, namespace, obj.GetName(), err)
	}

	zerolog.Ctx(ctx).Info().Str("namespace", namespace).Str("name", obj.GetName()).Msg("applied manifest")
	return nil
}

// DeleteLiveManifest removes the environment resource; a missing resource is not an error
func (e *Environments) DeleteLiveManifest(ctx context.Context, namespace string) error {
	err := e.client.Resource(e.gvr).Namespace(namespace).Delete(ctx, e.name, metav1.DeleteOptions{})
	if err != nil && !isNotFound(err) {
		return errors.Errorf("deleting %s %s/%s: %w", e.gvr.Resource, namespace, e.name, err)
	}
	return nil
}
