package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"cinelink/internal/encryption"
	"cinelink/services/resolver"
)

// decryptInvalidMessage is the single client-facing message for every
// decryption failure. Padding, key and format errors are deliberately
// indistinguishable.
const decryptInvalidMessage = "Invalid encrypted request"

// EncryptionHandler serves key distribution and the encrypted request
// endpoints.
type EncryptionHandler struct {
	keys     *encryption.KeyManager
	resolver resolverService
}

func NewEncryptionHandler(keys *encryption.KeyManager, resolverSvc resolverService) *EncryptionHandler {
	return &EncryptionHandler{keys: keys, resolver: resolverSvc}
}

// PublicKey handles GET /api/encryption/public-key.
func (h *EncryptionHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	info, err := h.keys.PublicKeyInfo()
	if err != nil {
		log.Printf("[encryption] public key export failed: %v", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// EncryptionTest handles POST /api/encryption/test. An envelope body is
// decrypted and the plaintext echoed back under the same session key. A plain
// JSON body is echoed back in a fresh envelope, so clients can verify the
// encrypted channel before they hold a session key.
func (h *EncryptionHandler) EncryptionTest(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, decryptInvalidMessage, http.StatusBadRequest)
		return
	}

	if !encryption.IsEnvelope(body) {
		reply, err := json.Marshal(map[string]any{"echo": body, "status": "ok"})
		if err != nil {
			writeJSONError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		env, err := h.keys.EncryptPayload(reply)
		if err != nil {
			log.Printf("[encryption] reply encrypt failed: %v", err)
			writeJSONError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, env)
		return
	}

	env := encryption.Envelope{
		EncryptedData:       stringField(body, "encrypted_data"),
		EncryptedSessionKey: stringField(body, "encrypted_session_key"),
	}
	plaintext, sessionKey, err := h.keys.DecryptPayloadSessionKey(env)
	if err != nil {
		writeJSONError(w, decryptInvalidMessage, http.StatusBadRequest)
		return
	}

	var echoed any
	if err := json.Unmarshal(plaintext, &echoed); err != nil {
		writeJSONError(w, decryptInvalidMessage, http.StatusBadRequest)
		return
	}
	h.writeEncrypted(w, sessionKey, map[string]any{"echo": echoed, "status": "ok"})
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

// EncryptedMovieLinks handles POST /api/encrypted/movie-links: the fallback
// resolution flow with an encrypted request and an encrypted reply.
func (h *EncryptionHandler) EncryptedMovieLinks(w http.ResponseWriter, r *http.Request) {
	var env encryption.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSONError(w, decryptInvalidMessage, http.StatusBadRequest)
		return
	}

	plaintext, sessionKey, err := h.keys.DecryptPayloadSessionKey(env)
	if err != nil {
		writeJSONError(w, decryptInvalidMessage, http.StatusBadRequest)
		return
	}

	var req linksRequest
	if err := json.Unmarshal(plaintext, &req); err != nil {
		writeJSONError(w, decryptInvalidMessage, http.StatusBadRequest)
		return
	}

	links, err := h.resolver.Resolve(r.Context(), req.tmdb(), req.IMDBID)
	if err != nil {
		h.writeResolverError(w, sessionKey, err)
		return
	}
	h.writeEncrypted(w, sessionKey, links)
}

// writeEncrypted serializes payload and replies with an envelope under the
// caller's session key. The reply omits the wrapped key.
func (h *EncryptionHandler) writeEncrypted(w http.ResponseWriter, sessionKey []byte, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[encryption] reply marshal failed: %v", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	env, err := encryption.EncryptWithSessionKey(data, sessionKey)
	if err != nil {
		log.Printf("[encryption] reply encrypt failed: %v", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// writeResolverError mirrors the plaintext endpoint's status mapping but
// encrypts the error body so the reply channel stays uniform.
func (h *EncryptionHandler) writeResolverError(w http.ResponseWriter, sessionKey []byte, err error) {
	var upstream *resolver.UpstreamError
	var status int
	var body any
	switch {
	case errors.Is(err, resolver.ErrMissingIdentifier):
		status = http.StatusBadRequest
		body = map[string]string{"error": err.Error()}
	case errors.Is(err, resolver.ErrMovieNotFound):
		status = http.StatusNotFound
		body = map[string]string{"error": err.Error()}
	case errors.As(err, &upstream):
		status = http.StatusInternalServerError
		body = map[string]any{"error": upstream.Error(), "attempted_urls": upstream.Attempted}
	default:
		log.Printf("[encryption] unexpected resolver error: %v", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data, merr := json.Marshal(body)
	if merr != nil {
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	env, eerr := encryption.EncryptWithSessionKey(data, sessionKey)
	if eerr != nil {
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, env)
}
