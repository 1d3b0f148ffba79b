package domain

// KeyPrefix namespaces every key written to the cache backend.
const KeyPrefix = "tablefinder:"
