// Package domain contains the core business entities, value objects, and
// domain logic of the application: the daily digest task, the articles
// enrolled in it, and the batch audit trail. It represents the heart of
// the system, independent of any specific infrastructure or delivery
// mechanism.
package domain
