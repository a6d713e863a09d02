package domain

// InstanceRepository is the catalog of deployed server instances.
type InstanceRepository interface {
	InsertInstance(inst *ServerInstance) error
	GetInstanceByName(name string) (*ServerInstance, error)
	ListInstances() ([]ServerInstance, error)
	DeleteInstance(name string) error
}
