package tenant

// SeedDevMemberships populates the in-memory membership store with a default
// tenant and user for local development and tests.
func SeedDevMemberships(store *InMemoryMembershipStore) (userID, tenantID string) {
	userID, tenantID = "dev-user", "devorg01"
	store.Grant(userID, tenantID)
	return userID, tenantID
}
