package model

// Ownership tracks the provenance of the externally deletable resources of a
// session, so rollback only removes what this session created.
type Ownership struct {
	// ProjectCreatedThisSession is true when the project directory was scaffolded
	// by this session. The project is always created before the mesh deploy step.
	ProjectCreatedThisSession bool
	// MeshCreatedForWorkspace holds the workspace whose mesh creation request was
	// submitted by this session. Set on submission, not on success: a
	// submitted-but-unverified mesh is still a resource to roll back.
	MeshCreatedForWorkspace string
	// MeshExistedBeforeSession is true when the target workspace already had a
	// mesh before the first deployment attempt. Such a mesh is never deleted.
	MeshExistedBeforeSession bool
}

// MeshDeletable returns true when rollback is allowed to delete the mesh.
func (o Ownership) MeshDeletable() bool {
	return o.MeshCreatedForWorkspace != "" && !o.MeshExistedBeforeSession
}
