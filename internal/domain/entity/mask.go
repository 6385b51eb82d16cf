package entity

// Mask бинарная маска объекта, совпадающая по размеру с исходным изображением.
// Пиксели хранятся построчно.
type Mask struct {
	Width  int
	Height int
	bits   []bool
}

// NewMask создаёт пустую маску заданного размера.
func NewMask(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{
		Width:  width,
		Height: height,
		bits:   make([]bool, width*height),
	}
}

// At сообщает, принадлежит ли пиксель объекту. Вне маски всегда false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.bits[y*m.Width+x]
}

// Set помечает пиксель. Координаты вне маски игнорируются.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.bits[y*m.Width+x] = v
}

// Sum возвращает площадь объекта в пикселях.
func (m *Mask) Sum() int {
	total := 0
	for _, b := range m.bits {
		if b {
			total++
		}
	}
	return total
}

// RowSums возвращает количество отмеченных пикселей в каждой строке.
func (m *Mask) RowSums() []int {
	sums := make([]int, m.Height)
	for y := 0; y < m.Height; y++ {
		row := m.bits[y*m.Width : (y+1)*m.Width]
		for _, b := range row {
			if b {
				sums[y]++
			}
		}
	}
	return sums
}

// SameSize проверяет, что маска конгруэнтна изображению width x height.
func (m *Mask) SameSize(width, height int) bool {
	return m.Width == width && m.Height == height
}

// Candidate одна из масок, предложенных сегментатором, с оценкой качества.
type Candidate struct {
	Mask  *Mask
	Score float64
}
