package firebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/monetalabs/moneta/internal/application/ports"
	"github.com/monetalabs/moneta/internal/domain/errors"
	"github.com/monetalabs/moneta/internal/domain/ledger"
)

// Compile-time check that Store implements RemoteStorePort.
var _ ports.RemoteStorePort = (*Store)(nil)

// Store bundles the per-kind collections of the sync API.
type Store struct {
	categories   *collection[*ledger.Category, categoryDoc]
	transactions *collection[*ledger.Transaction, transactionDoc]
	budgets      *collection[*ledger.Budget, budgetDoc]
}

// NewStore creates a remote store backed by the sync API.
func NewStore(config Config) *Store {
	client := NewClient(config)
	return &Store{
		categories: &collection[*ledger.Category, categoryDoc]{
			client: client,
			name:   "categories",
			encode: encodeCategory,
			decode: decodeCategory,
		},
		transactions: &collection[*ledger.Transaction, transactionDoc]{
			client: client,
			name:   "transactions",
			encode: encodeTransaction,
			decode: decodeTransaction,
		},
		budgets: &collection[*ledger.Budget, budgetDoc]{
			client: client,
			name:   "budgets",
			encode: encodeBudget,
			decode: decodeBudget,
		},
	}
}

// Categories returns the remote category collection.
func (s *Store) Categories() ports.RemoteCollection[*ledger.Category] {
	return s.categories
}

// Transactions returns the remote transaction collection.
func (s *Store) Transactions() ports.RemoteCollection[*ledger.Transaction] {
	return s.transactions
}

// Budgets returns the remote budget collection.
func (s *Store) Budgets() ports.RemoteCollection[*ledger.Budget] {
	return s.budgets
}

// collection implements RemoteCollection for one document kind. The codec
// pair keeps the generic request plumbing free of per-kind knowledge.
type collection[T ledger.Syncable, D any] struct {
	client *Client
	name   string
	encode func(T) D
	decode func(D, string) (T, error)
}

// path builds the per-user collection path.
func (c *collection[T, D]) path(userID string) string {
	return "/v1/users/" + url.PathEscape(userID) + "/" + c.name
}

// Create uploads a new record and returns the server-assigned document ID.
func (c *collection[T, D]) Create(ctx context.Context, userID string, rec T) (string, error) {
	body, err := json.Marshal(c.encode(rec))
	if err != nil {
		return "", errors.NewError(errors.CodeRemote, "failed to marshal document", err)
	}

	resp, err := c.client.doRequestWithRetry(ctx, http.MethodPost, c.name, c.path(userID), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.client.handleErrorResponse(resp)
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", errors.NewError(errors.CodeRemote, "failed to decode create response", err)
	}
	if created.ID == "" {
		return "", errors.NewError(errors.CodeRemote, "create response missing document id", nil)
	}

	return created.ID, nil
}

// Update overwrites the document addressed by the record's cloud ID.
func (c *collection[T, D]) Update(ctx context.Context, userID string, rec T) error {
	cloudID := rec.SyncEnvelope().CloudID
	if cloudID == "" {
		return errors.ErrNoCloudID
	}

	body, err := json.Marshal(c.encode(rec))
	if err != nil {
		return errors.NewError(errors.CodeRemote, "failed to marshal document", err)
	}

	resp, err := c.client.doRequestWithRetry(ctx, http.MethodPut, c.name,
		c.path(userID)+"/"+url.PathEscape(cloudID), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.client.handleErrorResponse(resp)
	}

	return nil
}

// Delete removes the document with the given cloud ID. A document that is
// already gone counts as deleted.
func (c *collection[T, D]) Delete(ctx context.Context, userID, cloudID string) error {
	resp, err := c.client.doRequestWithRetry(ctx, http.MethodDelete, c.name,
		c.path(userID)+"/"+url.PathEscape(cloudID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return c.client.handleErrorResponse(resp)
	}
}

// ListAll fetches the complete collection for the user. Full list, not
// incremental: acceptable at personal-ledger volumes.
func (c *collection[T, D]) ListAll(ctx context.Context, userID string) ([]T, error) {
	resp, err := c.client.doRequestWithRetry(ctx, http.MethodGet, c.name, c.path(userID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.client.handleErrorResponse(resp)
	}

	var list listResponse[D]
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, errors.NewError(errors.CodeRemote, "failed to decode list response", err)
	}

	records := make([]T, 0, len(list.Documents))
	for _, doc := range list.Documents {
		rec, err := c.decode(doc, userID)
		if err != nil {
			return nil, errors.NewError(errors.CodeRemote,
				fmt.Sprintf("malformed document in %s", c.name), err)
		}
		records = append(records, rec)
	}

	return records, nil
}
