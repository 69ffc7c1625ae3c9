package entity

// Классы KITTI semantic (Cityscapes label ids).
const (
	ClassRoad uint8 = 7
	ClassCar  uint8 = 26
)

// DefaultClassCount число классов сегментационной головы по умолчанию.
const DefaultClassCount = 35

// HighlightClasses классы, для которых на оверлее показывается глубина.
var HighlightClasses = []uint8{ClassRoad, ClassCar}
