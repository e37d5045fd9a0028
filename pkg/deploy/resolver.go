package deploy

// Resolver resolves an implementation's soft-package dependency tree
// against a candidate device, recursively, the way
// resolveSoftpkgDependencies/resolveDependencyImplementation walk the
// nested <softpkgdependency> elements of an SPD.
type Resolver struct{}

// NewResolver returns a stateless Dependency Resolver.
func NewResolver() *Resolver { return &Resolver{} }

// ResolveSoftPkg resolves every entry of impl.SoftPkgDependencies against
// device, selecting for each the first implementation whose processor/OS
// requirements the device satisfies and whose own nested soft-package
// dependencies resolve recursively. On any failure it clears every
// selection this call made on impl and returns false, leaving impl
// exactly as it found it.
func (r *Resolver) ResolveSoftPkg(impl *ImplSpec, device *DeviceNode) bool {
	if impl.selectedSoftPkg == nil {
		impl.selectedSoftPkg = make(map[int]*ImplSpec)
	}
	for i, pkg := range impl.SoftPkgDependencies {
		selected := r.resolveDependencyImplementation(pkg, device)
		if selected == nil {
			r.clearSelections(impl)
			return false
		}
		impl.selectedSoftPkg[i] = selected
	}
	return true
}

// resolveDependencyImplementation enumerates pkg's own implementations
// (pkg here plays the role of one softpkgdependency's <implementation>
// set) and returns the first one compatible with device, recursing into
// its nested soft-package dependencies before accepting it.
func (r *Resolver) resolveDependencyImplementation(pkg *ImplSpec, device *DeviceNode) *ImplSpec {
	candidates := pkg.SoftPkgDependencies
	if len(candidates) == 0 {
		// pkg is itself a leaf implementation choice.
		if r.matches(pkg, device) {
			return pkg
		}
		return nil
	}
	for _, candidate := range candidates {
		if !r.matches(candidate, device) {
			continue
		}
		if r.ResolveSoftPkg(candidate, device) {
			return candidate
		}
	}
	return nil
}

// matches applies the matching policy: a non-empty ProcessorDeps must
// intersect the device's processor list, a non-empty OSDeps must
// intersect the device's OS list; empty either-side lists are trivially
// satisfied.
func (r *Resolver) matches(impl *ImplSpec, device *DeviceNode) bool {
	return device.SatisfiesProcessor(impl.ProcessorDeps) && device.SatisfiesOS(impl.OSDeps)
}

// clearSelections discards every soft-package selection recorded on impl
// by a failed ResolveSoftPkg attempt.
func (r *Resolver) clearSelections(impl *ImplSpec) {
	impl.selectedSoftPkg = nil
}

// SelectedSoftPkg returns the implementation chosen for
// impl.SoftPkgDependencies[index] by the most recent successful
// ResolveSoftPkg call, or nil if none was recorded.
func (impl *ImplSpec) SelectedSoftPkg(index int) *ImplSpec {
	if impl.selectedSoftPkg == nil {
		return nil
	}
	return impl.selectedSoftPkg[index]
}
