// package models defines the data model for the mood playlist service
package models
