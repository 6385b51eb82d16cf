package port

// ImageStager временно кладёт загруженное изображение на диск.
type ImageStager interface {
	// Stage записывает данные под именем name и возвращает путь и функцию
	// освобождения, которую нужно вызвать на любом пути выхода.
	Stage(name string, data []byte) (path string, release func(), err error)
}
