package bonename

import "github.com/OCAP2/rigsync/internal/humanoid"

var tables = map[Convention]map[humanoid.Bone]string{
	Motive: motive,
	FBX:    fbx,
	BVH:    bvh,
}

var motive = map[humanoid.Bone]string{
	humanoid.Hips:          "_Hip",
	humanoid.Spine:         "_Ab",
	humanoid.Chest:         "_Chest",
	humanoid.Neck:          "_Neck",
	humanoid.Head:          "_Head",
	humanoid.LeftShoulder:  "_LShoulder",
	humanoid.LeftUpperArm:  "_LUArm",
	humanoid.LeftLowerArm:  "_LFArm",
	humanoid.LeftHand:      "_LHand",
	humanoid.RightShoulder: "_RShoulder",
	humanoid.RightUpperArm: "_RUArm",
	humanoid.RightLowerArm: "_RFArm",
	humanoid.RightHand:     "_RHand",
	humanoid.LeftUpperLeg:  "_LThigh",
	humanoid.LeftLowerLeg:  "_LShin",
	humanoid.LeftFoot:      "_LFoot",
	humanoid.RightUpperLeg: "_RThigh",
	humanoid.RightLowerLeg: "_RShin",
	humanoid.RightFoot:     "_RFoot",
	humanoid.LeftToes:      "_LToe",
	humanoid.RightToes:     "_RToe",

	humanoid.LeftThumbProximal:      "_LThumb1",
	humanoid.LeftThumbIntermediate:  "_LThumb2",
	humanoid.LeftThumbDistal:        "_LThumb3",
	humanoid.RightThumbProximal:     "_RThumb1",
	humanoid.RightThumbIntermediate: "_RThumb2",
	humanoid.RightThumbDistal:       "_RThumb3",

	humanoid.LeftIndexProximal:      "_LIndex1",
	humanoid.LeftIndexIntermediate:  "_LIndex2",
	humanoid.LeftIndexDistal:        "_LIndex3",
	humanoid.RightIndexProximal:     "_RIndex1",
	humanoid.RightIndexIntermediate: "_RIndex2",
	humanoid.RightIndexDistal:       "_RIndex3",

	humanoid.LeftMiddleProximal:      "_LMiddle1",
	humanoid.LeftMiddleIntermediate:  "_LMiddle2",
	humanoid.LeftMiddleDistal:        "_LMiddle3",
	humanoid.RightMiddleProximal:     "_RMiddle1",
	humanoid.RightMiddleIntermediate: "_RMiddle2",
	humanoid.RightMiddleDistal:       "_RMiddle3",

	humanoid.LeftRingProximal:      "_LRing1",
	humanoid.LeftRingIntermediate:  "_LRing2",
	humanoid.LeftRingDistal:        "_LRing3",
	humanoid.RightRingProximal:     "_RRing1",
	humanoid.RightRingIntermediate: "_RRing2",
	humanoid.RightRingDistal:       "_RRing3",

	humanoid.LeftLittleProximal:      "_LPinky1",
	humanoid.LeftLittleIntermediate:  "_LPinky2",
	humanoid.LeftLittleDistal:        "_LPinky3",
	humanoid.RightLittleProximal:     "_RPinky1",
	humanoid.RightLittleIntermediate: "_RPinky2",
	humanoid.RightLittleDistal:       "_RPinky3",
}

var fbx = map[humanoid.Bone]string{
	humanoid.Hips:          "_Hips",
	humanoid.Spine:         "_Spine",
	humanoid.Chest:         "_Spine1",
	humanoid.Neck:          "_Neck",
	humanoid.Head:          "_Head",
	humanoid.LeftShoulder:  "_LeftShoulder",
	humanoid.LeftUpperArm:  "_LeftArm",
	humanoid.LeftLowerArm:  "_LeftForeArm",
	humanoid.LeftHand:      "_LeftHand",
	humanoid.RightShoulder: "_RightShoulder",
	humanoid.RightUpperArm: "_RightArm",
	humanoid.RightLowerArm: "_RightForeArm",
	humanoid.RightHand:     "_RightHand",
	humanoid.LeftUpperLeg:  "_LeftUpLeg",
	humanoid.LeftLowerLeg:  "_LeftLeg",
	humanoid.LeftFoot:      "_LeftFoot",
	humanoid.RightUpperLeg: "_RightUpLeg",
	humanoid.RightLowerLeg: "_RightLeg",
	humanoid.RightFoot:     "_RightFoot",
	humanoid.LeftToes:      "_LeftToeBase",
	humanoid.RightToes:     "_RightToeBase",
}

var bvh = map[humanoid.Bone]string{
	humanoid.Hips:          "_Hips",
	humanoid.Spine:         "_Chest",
	humanoid.Chest:         "_Chest2",
	humanoid.Neck:          "_Neck",
	humanoid.Head:          "_Head",
	humanoid.LeftShoulder:  "_LeftCollar",
	humanoid.LeftUpperArm:  "_LeftShoulder",
	humanoid.LeftLowerArm:  "_LeftElbow",
	humanoid.LeftHand:      "_LeftWrist",
	humanoid.RightShoulder: "_RightCollar",
	humanoid.RightUpperArm: "_RightShoulder",
	humanoid.RightLowerArm: "_RightElbow",
	humanoid.RightHand:     "_RightWrist",
	humanoid.LeftUpperLeg:  "_LeftHip",
	humanoid.LeftLowerLeg:  "_LeftKnee",
	humanoid.LeftFoot:      "_LeftAnkle",
	humanoid.RightUpperLeg: "_RightHip",
	humanoid.RightLowerLeg: "_RightKnee",
	humanoid.RightFoot:     "_RightAnkle",
	humanoid.LeftToes:      "_LeftToe",
	humanoid.RightToes:     "_RightToe",
}
