/*
Copyright 2015 Gravitational, Inc.

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

package u2f

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/danstiner/go-u2f/lib/u2f/knownapps"
)

// secretServiceSchema is the fixed schema identifier attached to every item
// this daemon creates, matching both the "application" and "xdg:schema"
// attributes so other secret-service clients can recognize and avoid
// touching our items.
const secretServiceSchema = "com.github.danstiner.rust-u2f"

const (
	dbusDest              = "org.freedesktop.secrets"
	dbusDefaultCollection = "/org/freedesktop/secrets/aliases/default"
)

// secretServiceSecret is the JSON document encrypted and stored as each
// item's secret payload.
type secretServiceSecret struct {
	ApplicationKey secretServiceApplicationKey `json:"application_key"`
	Counter        uint32                      `json:"counter"`
}

type secretServiceApplicationKey struct {
	Application string `json:"application"`
	Handle      string `json:"handle"`
	Key         string `json:"key"`
}

// SecretServiceStore is the C5 collaborator: every ApplicationKey becomes
// one encrypted item in the desktop secret-service's default collection,
// indexed by a set of plaintext searchable attributes. Counter storage is
// per-item (per key handle), not per-application; the Store interface doc
// notes how this differs from FileStore.
type SecretServiceStore struct {
	conn       *dbus.Conn
	collection dbus.ObjectPath
	clock      clockwork.Clock
}

// SecretServiceStoreOption configures an optional constructor argument to
// OpenSecretServiceStore, following the functional-option style used
// elsewhere in this codebase for injecting a clock.
type SecretServiceStoreOption func(*SecretServiceStore)

// WithSecretServiceClock overrides the clock used to stamp date_registered
// attributes, for deterministic tests.
func WithSecretServiceClock(clock clockwork.Clock) SecretServiceStoreOption {
	return func(s *SecretServiceStore) {
		s.clock = clock
	}
}

// OpenSecretServiceStore connects to the session bus and resolves the
// default collection, unlocking it if necessary.
func OpenSecretServiceStore(opts ...SecretServiceStoreOption) (*SecretServiceStore, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, trace.Wrap(err, "connecting to session bus")
	}

	s := &SecretServiceStore{conn: conn, collection: dbusDefaultCollection, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureUnlocked(); err != nil {
		conn.Close()
		return nil, trace.Wrap(err)
	}
	return s, nil
}

// Close disconnects from the session bus.
func (s *SecretServiceStore) Close() error {
	return trace.Wrap(s.conn.Close())
}

func (s *SecretServiceStore) collectionObject() dbus.BusObject {
	return s.conn.Object(dbusDest, s.collection)
}

func (s *SecretServiceStore) serviceObject() dbus.BusObject {
	return s.conn.Object(dbusDest, dbus.ObjectPath("/org/freedesktop/secrets"))
}

// ensureUnlocked checks the collection's Locked property and, if set, drives
// the service's Unlock/Prompt dance to trigger an interactive unlock.
func (s *SecretServiceStore) ensureUnlocked() error {
	variant, err := s.collectionObject().GetProperty("org.freedesktop.Secret.Collection.Locked")
	if err != nil {
		return trace.Wrap(err, "reading collection Locked property")
	}
	locked, _ := variant.Value().(bool)
	if !locked {
		return nil
	}

	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	call := s.serviceObject().Call("org.freedesktop.Secret.Service.Unlock", 0, []dbus.ObjectPath{s.collection})
	if call.Err != nil {
		return trace.Wrap(call.Err, "unlocking default collection")
	}
	if err := call.Store(&unlocked, &prompt); err != nil {
		return trace.Wrap(err)
	}
	if prompt != "/" && prompt != "" {
		if err := s.runPrompt(prompt); err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

// runPrompt calls Prompt and blocks for the Completed signal, driving the
// user through whatever interactive unlock UI the service presents.
func (s *SecretServiceStore) runPrompt(prompt dbus.ObjectPath) error {
	sigCh := make(chan *dbus.Signal, 1)
	s.conn.Signal(sigCh)
	defer s.conn.RemoveSignal(sigCh)

	if err := s.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(prompt),
		dbus.WithMatchInterface("org.freedesktop.Secret.Prompt"),
	); err != nil {
		return trace.Wrap(err)
	}

	call := s.conn.Object(dbusDest, prompt).Call("org.freedesktop.Secret.Prompt.Prompt", 0, "")
	if call.Err != nil {
		return trace.Wrap(call.Err, "prompting for unlock")
	}

	select {
	case sig := <-sigCh:
		if sig.Name != "org.freedesktop.Secret.Prompt.Completed" {
			return trace.BadParameter("unexpected signal %v while waiting for prompt completion", sig.Name)
		}
		if len(sig.Body) > 0 {
			if dismissed, ok := sig.Body[0].(bool); ok && dismissed {
				return trace.AccessDenied("user dismissed the unlock prompt")
			}
		}
		return nil
	case <-time.After(2 * time.Minute):
		return trace.LimitExceeded("timed out waiting for unlock prompt")
	}
}

// searchAttributes returns the fixed attribute set used both to
// search for an existing item and as the base of a new item's attributes.
func searchAttributes(application ApplicationParameter, handle KeyHandle) map[string]string {
	return map[string]string{
		"application":     secretServiceSchema,
		"u2f_app_id_hash": application.Base64(),
		"u2f_key_handle":  handle.Base64(),
		"xdg:schema":      secretServiceSchema,
	}
}

// itemLabel renders the display label for an item, preferring the reversed
// known-app hostname over the raw base64 application parameter.
func itemLabel(application ApplicationParameter) string {
	hash := knownapps.HashFromBytes([32]byte(application))
	if hostname, ok := knownapps.Reverse(hash); ok {
		return fmt.Sprintf("Universal 2nd Factor token for %s", hostname)
	}
	return fmt.Sprintf("Universal 2nd Factor token for %s", application.Base64())
}

// findItem runs the two-field search (plus the fixed schema attributes) and
// returns the first matching item path, or "" if none match.
func (s *SecretServiceStore) findItem(application ApplicationParameter, handle KeyHandle) (dbus.ObjectPath, error) {
	if err := s.ensureUnlocked(); err != nil {
		return "", trace.Wrap(err)
	}

	var results []dbus.ObjectPath
	call := s.collectionObject().Call("org.freedesktop.Secret.Collection.SearchItems", 0, searchAttributes(application, handle))
	if call.Err != nil {
		return "", trace.Wrap(call.Err, "searching secret-service items")
	}
	if err := call.Store(&results); err != nil {
		return "", trace.Wrap(err)
	}
	if len(results) == 0 {
		return "", nil
	}
	return results[0], nil
}

func (s *SecretServiceStore) openSession() (dbus.ObjectPath, error) {
	var output dbus.Variant
	var session dbus.ObjectPath
	call := s.serviceObject().Call("org.freedesktop.Secret.Service.OpenSession", 0, "plain", dbus.MakeVariant(""))
	if call.Err != nil {
		return "", trace.Wrap(call.Err, "opening secret-service session")
	}
	if err := call.Store(&output, &session); err != nil {
		return "", trace.Wrap(err)
	}
	return session, nil
}

// secretStruct is the (session, parameters, value, content-type) tuple the
// Secret Service D-Bus API represents a plaintext secret with.
type secretStruct struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

func (s *SecretServiceStore) createItem(label string, attrs map[string]string, secret []byte) error {
	session, err := s.openSession()
	if err != nil {
		return trace.Wrap(err)
	}

	properties := map[string]dbus.Variant{
		"org.freedesktop.Secret.Item.Label":      dbus.MakeVariant(label),
		"org.freedesktop.Secret.Item.Attributes": dbus.MakeVariant(attrs),
	}
	secretValue := secretStruct{Session: session, Parameters: []byte{}, Value: secret, ContentType: "application/json"}

	var item dbus.ObjectPath
	var prompt dbus.ObjectPath
	call := s.collectionObject().Call("org.freedesktop.Secret.Collection.CreateItem", 0, properties, secretValue, false)
	if call.Err != nil {
		return trace.Wrap(call.Err, "creating secret-service item")
	}
	if err := call.Store(&item, &prompt); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

func (s *SecretServiceStore) getSecret(item dbus.ObjectPath) ([]byte, error) {
	session, err := s.openSession()
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var secret secretStruct
	call := s.conn.Object(dbusDest, item).Call("org.freedesktop.Secret.Item.GetSecret", 0, session)
	if call.Err != nil {
		return nil, trace.Wrap(call.Err, "fetching secret-service item secret")
	}
	if err := call.Store(&secret); err != nil {
		return nil, trace.Wrap(err)
	}
	return secret.Value, nil
}

func (s *SecretServiceStore) setSecret(item dbus.ObjectPath, value []byte) error {
	session, err := s.openSession()
	if err != nil {
		return trace.Wrap(err)
	}
	secret := secretStruct{Session: session, Parameters: []byte{}, Value: value, ContentType: "application/json"}
	call := s.conn.Object(dbusDest, item).Call("org.freedesktop.Secret.Item.SetSecret", 0, secret)
	return trace.Wrap(call.Err)
}

func (s *SecretServiceStore) getAttributes(item dbus.ObjectPath) (map[string]string, error) {
	variant, err := s.conn.Object(dbusDest, item).GetProperty("org.freedesktop.Secret.Item.Attributes")
	if err != nil {
		return nil, trace.Wrap(err)
	}
	attrs, ok := variant.Value().(map[string]string)
	if !ok {
		return nil, trace.BadParameter("unexpected attributes property type %T", variant.Value())
	}
	return attrs, nil
}

func (s *SecretServiceStore) setAttributes(item dbus.ObjectPath, attrs map[string]string) error {
	call := s.conn.Object(dbusDest, item).Call("org.freedesktop.DBus.Properties.Set", 0,
		"org.freedesktop.Secret.Item", "Attributes", dbus.MakeVariant(attrs))
	return trace.Wrap(call.Err)
}

func (s *SecretServiceStore) setLabel(item dbus.ObjectPath, label string) error {
	call := s.conn.Object(dbusDest, item).Call("org.freedesktop.DBus.Properties.Set", 0,
		"org.freedesktop.Secret.Item", "Label", dbus.MakeVariant(label))
	return trace.Wrap(call.Err)
}

func (s *SecretServiceStore) AddApplicationKey(key *ApplicationKey) error {
	if err := s.ensureUnlocked(); err != nil {
		return trace.Wrap(err)
	}

	pem, err := key.Key.PEM()
	if err != nil {
		return trace.Wrap(err)
	}

	existing, err := s.RetrieveApplicationKey(key.Application, key.Handle)
	if err != nil {
		return trace.Wrap(err)
	}
	if existing != nil {
		existingPEM, err := existing.Key.PEM()
		if err != nil {
			return trace.Wrap(err)
		}
		if string(existingPEM) == string(pem) {
			return nil
		}
		return trace.AlreadyExists("a different key is already registered for this key handle")
	}

	secret := secretServiceSecret{
		ApplicationKey: secretServiceApplicationKey{
			Application: key.Application.Base64(),
			Handle:      key.Handle.Base64(),
			Key:         string(pem),
		},
		Counter: 0,
	}
	payload, err := json.Marshal(secret)
	if err != nil {
		return trace.Wrap(err)
	}

	attrs := searchAttributes(key.Application, key.Handle)
	attrs["times_used"] = "0"
	attrs["date_registered"] = strconv.FormatInt(s.clock.Now().Unix(), 10)

	hash := knownapps.HashFromBytes([32]byte(key.Application))
	if hostname, ok := knownapps.Reverse(hash); ok {
		attrs["u2f_app_id"] = hostname
	}

	return trace.Wrap(s.createItem(itemLabel(key.Application), attrs, payload))
}

func (s *SecretServiceStore) RetrieveApplicationKey(application ApplicationParameter, handle KeyHandle) (*ApplicationKey, error) {
	item, err := s.findItem(application, handle)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if item == "" {
		return nil, nil
	}

	payload, err := s.getSecret(item)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var secret secretServiceSecret
	if err := json.Unmarshal(payload, &secret); err != nil {
		return nil, trace.Wrap(err)
	}

	key, err := PrivateKeyFromPEM([]byte(secret.ApplicationKey.Key))
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &ApplicationKey{Application: application, Handle: handle, Key: key}, nil
}

// GetAndIncrementCounter implements the per-item counter semantics
// documented on the Store interface: fetch the item's secret, bump its
// counter, write the secret back, bump the times_used attribute, and
// finally refresh the label in case the hostname has become reversible
// since registration.
func (s *SecretServiceStore) GetAndIncrementCounter(application ApplicationParameter, handle KeyHandle) (Counter, error) {
	item, err := s.findItem(application, handle)
	if err != nil {
		return 0, trace.Wrap(err)
	}
	if item == "" {
		return 0, trace.NotFound("no secret-service item for this application/handle")
	}

	payload, err := s.getSecret(item)
	if err != nil {
		return 0, trace.Wrap(err)
	}
	var secret secretServiceSecret
	if err := json.Unmarshal(payload, &secret); err != nil {
		return 0, trace.Wrap(err)
	}

	if secret.Counter+1 == 0 {
		return 0, trace.LimitExceeded("counter for this application/handle has overflowed")
	}
	secret.Counter++

	newPayload, err := json.Marshal(secret)
	if err != nil {
		return 0, trace.Wrap(err)
	}
	if err := s.setSecret(item, newPayload); err != nil {
		return 0, trace.Wrap(err)
	}

	attrs, err := s.getAttributes(item)
	if err != nil {
		return 0, trace.Wrap(err)
	}
	timesUsed, _ := strconv.Atoi(attrs["times_used"])
	attrs["times_used"] = strconv.Itoa(timesUsed + 1)

	if err := s.setAttributes(item, attrs); err != nil {
		return 0, trace.Wrap(err)
	}

	if err := s.setLabel(item, itemLabel(application)); err != nil {
		return 0, trace.Wrap(err)
	}

	return Counter(secret.Counter), nil
}
