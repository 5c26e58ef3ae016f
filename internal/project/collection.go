package project

import (
	"fmt"

	"github.com/fyrsmithlabs/projectd/internal/sanitize"
)

// CollectionType identifies one of the two document collections.
type CollectionType string

const (
	// CollectionProjects stores project documents.
	CollectionProjects CollectionType = "Projects"

	// CollectionTasks stores task documents.
	CollectionTasks CollectionType = "Tasks"
)

// GetCollectionName returns the physical collection name for a type, with an
// optional prefix for deployments sharing one database. The prefix is
// normalized by sanitize.Prefix.
// Format: {prefix}_{type}, or {type} when prefix is empty.
//
// Examples:
//   - "Projects"
//   - "staging_Tasks"
func GetCollectionName(prefix string, collectionType CollectionType) (string, error) {
	if collectionType == "" {
		return "", fmt.Errorf("collection type cannot be empty")
	}
	prefix = sanitize.Prefix(prefix)
	if prefix == "" {
		return string(collectionType), nil
	}
	return fmt.Sprintf("%s_%s", prefix, collectionType), nil
}

// GetAllCollectionNames returns the projects and tasks collection names.
func GetAllCollectionNames(prefix string) ([]string, error) {
	types := []CollectionType{
		CollectionProjects,
		CollectionTasks,
	}

	names := make([]string, 0, len(types))
	for _, t := range types {
		name, err := GetCollectionName(prefix, t)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}
